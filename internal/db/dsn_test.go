package db

import "testing"

func TestWithDBName(t *testing.T) {
	tests := []struct {
		dsn, name, want string
	}{
		{"postgres://ais@127.0.0.1:5432/postgres?sslmode=disable", "ais_2024", "postgres://ais@127.0.0.1:5432/ais_2024?sslmode=disable"},
		{"postgresql://u:p@db/x", "/y", "postgresql://u:p@db/y"},
		{"u@db:5432/x", "positions", "postgres://u@db:5432/positions"},
	}
	for _, tt := range tests {
		got, err := WithDBName(tt.dsn, tt.name)
		if err != nil {
			t.Fatalf("WithDBName(%q, %q): %v", tt.dsn, tt.name, err)
		}
		if got != tt.want {
			t.Errorf("WithDBName(%q, %q) = %q, want %q", tt.dsn, tt.name, got, tt.want)
		}
	}
}

func TestWithDBNameErrors(t *testing.T) {
	for _, dsn := range []string{"", "mysql://u@db/x"} {
		if _, err := WithDBName(dsn, "x"); err == nil {
			t.Errorf("WithDBName(%q) accepted", dsn)
		}
	}
}

func TestRedact(t *testing.T) {
	got := Redact("postgres://ais:secret@db:5432/ais")
	if got != "postgres://ais:xxxxx@db:5432/ais" {
		t.Errorf("Redact = %q", got)
	}
	if got := Redact(""); got != "<invalid dsn>" {
		t.Errorf("Redact(\"\") = %q", got)
	}
}
