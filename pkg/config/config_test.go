package config

import "testing"

func TestPassportBaseURLTrimsSlash(t *testing.T) {
	app := AppConfig{BaseURL: "https://maisonnoire.example/"}
	if got := app.PassportBaseURL(); got != "https://maisonnoire.example" {
		t.Fatalf("PassportBaseURL() = %q", got)
	}
}

func TestValidateBaseURL(t *testing.T) {
	cases := []struct {
		url     string
		wantErr bool
	}{
		{"https://maisonnoire.example", false},
		{"http://localhost:8080", false},
		{"maisonnoire.example", true},
		{"/passport", true},
	}
	for _, tc := range cases {
		err := AppConfig{BaseURL: tc.url}.validateBaseURL()
		if (err != nil) != tc.wantErr {
			t.Errorf("validateBaseURL(%q) err = %v, wantErr %v", tc.url, err, tc.wantErr)
		}
	}
}

func TestDBConfigValidate(t *testing.T) {
	if err := (DBConfig{}).validate(); err == nil {
		t.Fatal("expected error when neither path nor dsn is set")
	}
	if err := (DBConfig{Path: "maison.db"}).validate(); err != nil {
		t.Fatalf("sqlite path alone should be valid: %v", err)
	}
	if !(DBConfig{Path: "maison.db"}).UseSQLite() {
		t.Fatal("UseSQLite should be true when a path is set")
	}
	if (DBConfig{DSN: "postgres://localhost/maison"}).UseSQLite() {
		t.Fatal("UseSQLite should be false for a DSN-only config")
	}
}
