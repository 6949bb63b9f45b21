package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zdc.yaml")
	err := os.WriteFile(path, []byte("author: Ada\nemail: ada@x\nserver: https://data.example.org\nkey: sekrit\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("ZDC_CONFIG", path)
	t.Setenv("ZDC_AUTHOR", "")
	t.Setenv("ZDC_EMAIL", "")
	t.Setenv("ZDC_SERVER", "")
	t.Setenv("ZDC_KEY", "")

	conf, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	want := Config{Author: "Ada", Email: "ada@x", Server: "https://data.example.org", Key: "sekrit"}
	if conf != want {
		t.Errorf("got %+v, want %+v", conf, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zdc.yaml")
	err := os.WriteFile(path, []byte("author: Ada\nemail: ada@x\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("ZDC_CONFIG", path)
	t.Setenv("ZDC_AUTHOR", "Grace")
	t.Setenv("ZDC_SERVER", "https://other.example.org")
	t.Setenv("ZDC_EMAIL", "")
	t.Setenv("ZDC_KEY", "")

	conf, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if conf.Author != "Grace" {
		t.Errorf("env override lost: author = %q", conf.Author)
	}
	if conf.Email != "ada@x" {
		t.Errorf("file value lost: email = %q", conf.Email)
	}
	if conf.Server != "https://other.example.org" {
		t.Errorf("got server %q", conf.Server)
	}
}

func TestMissingFile(t *testing.T) {
	t.Setenv("ZDC_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("ZDC_AUTHOR", "")
	t.Setenv("ZDC_EMAIL", "")
	t.Setenv("ZDC_SERVER", "")
	t.Setenv("ZDC_KEY", "")

	conf, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if conf != (Config{}) {
		t.Errorf("got %+v, want zero config", conf)
	}
}
