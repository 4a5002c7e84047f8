package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantCmd   Command
		wantKnown bool
	}{
		{"empty args default to serve", []string{}, CommandServe, true},
		{"serve", []string{"serve"}, CommandServe, true},
		{"worker", []string{"worker"}, CommandWorker, true},
		{"migrate", []string{"migrate"}, CommandMigrate, true},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck, true},
		{"unknown falls back to serve", []string{"unknown"}, CommandServe, false},
		{"extra args ignored", []string{"worker", "--flag", "value"}, CommandWorker, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, known := ParseCommand(tt.args)
			if cmd != tt.wantCmd {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, cmd, tt.wantCmd)
			}
			if known != tt.wantKnown {
				t.Errorf("ParseCommand(%v) known = %v, want %v", tt.args, known, tt.wantKnown)
			}
		})
	}
}
