package utils

import "testing"

func TestExtractFromNatsURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "with port", url: "nats://localhost:4223", want: "localhost:4223"},
		{name: "default port", url: "nats://nats.example.com", want: "nats.example.com:4222"},
		{name: "with credentials", url: "nats://user:pw@nats:4222", want: "nats:4222"},
		{name: "server list", url: "nats://a:1,nats://b:2", want: "a:1"},
		{name: "no nats url", url: "http://localhost:8080", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractFromNatsURL(tt.url); got != tt.want {
				t.Errorf("ExtractFromNatsURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractFromDBURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "with port", url: "postgresql://u:p@db:5433/grs", want: "db:5433"},
		{name: "default port", url: "postgresql://u:p@db/grs", want: "db:5432"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractFromDBURL(tt.url); got != tt.want {
				t.Errorf("ExtractFromDBURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckClientVersion(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		minVersion string
		want       bool
	}{
		{name: "equal", version: "v0.1.0", minVersion: "v0.1.0", want: true},
		{name: "without prefix", version: "0.2.1", minVersion: "v0.2.0", want: true},
		{name: "too old", version: "v0.1.9", minVersion: "0.2.0", want: false},
		{name: "default minimum", version: "1.0.0", want: true},
		{name: "invalid", version: "latest", minVersion: "v0.1.0", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckClientVersion(tt.version, tt.minVersion); got != tt.want {
				t.Errorf("CheckClientVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}
