package sync

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ballee/dbsync/internal/models"
)

func testEnv(id string, protection models.Protection) models.Environment {
	return models.Environment{
		ID:         id,
		Host:       "localhost",
		Port:       5432,
		User:       "postgres",
		Database:   "app_" + id,
		Protection: protection,
	}
}

func TestCheckTargetRejectsProtected(t *testing.T) {
	err := CheckTarget(testEnv("production", models.Protected))
	if err == nil {
		t.Fatal("Expected protected target to be rejected")
	}

	var safetyErr *SafetyError
	if !errors.As(err, &safetyErr) {
		t.Fatalf("Expected SafetyError, got %T", err)
	}
	if safetyErr.Check != "protected-target" {
		t.Errorf("Expected check 'protected-target', got '%s'", safetyErr.Check)
	}
}

func TestCheckTargetAllowsUnprotected(t *testing.T) {
	for _, id := range []string{"staging", "local"} {
		if err := CheckTarget(testEnv(id, models.Unprotected)); err != nil {
			t.Errorf("Expected target '%s' to be allowed, got: %v", id, err)
		}
	}
}

func TestNewJobRejectsProtectedTarget(t *testing.T) {
	_, err := NewJob(testEnv("staging", models.Unprotected), testEnv("production", models.Protected), nil, true)
	if err == nil {
		t.Fatal("Expected job construction to fail for a protected target")
	}
}

func TestPhrase(t *testing.T) {
	got := Phrase(testEnv("local", models.Unprotected))
	if got != "SYNC TO LOCAL" {
		t.Errorf("Expected phrase 'SYNC TO LOCAL', got '%s'", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name        string
		confirmFlag bool
		yesFlag     bool
		input       string
		wantErr     bool
		wantDryRun  bool
		wantConfirm bool
	}{
		{
			name:       "no confirm flag is a dry run",
			wantDryRun: true,
		},
		{
			name:       "yes without confirm is still a dry run",
			yesFlag:    true,
			wantDryRun: true,
		},
		{
			name:        "confirm plus yes skips the prompt",
			confirmFlag: true,
			yesFlag:     true,
			wantConfirm: true,
		},
		{
			name:        "confirm plus exact phrase",
			confirmFlag: true,
			input:       "SYNC TO LOCAL\n",
			wantConfirm: true,
		},
		{
			name:        "phrase with windows line ending",
			confirmFlag: true,
			input:       "SYNC TO LOCAL\r\n",
			wantConfirm: true,
		},
		{
			name:        "wrong phrase is fatal",
			confirmFlag: true,
			input:       "sync to local\n",
			wantErr:     true,
		},
		{
			name:        "empty input is fatal",
			confirmFlag: true,
			input:       "",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{
				Source: testEnv("staging", models.Unprotected),
				Target: testEnv("local", models.Unprotected),
			}
			g := &Guard{In: strings.NewReader(tt.input), Out: io.Discard}

			err := g.Confirm(job, tt.confirmFlag, tt.yesFlag)

			if tt.wantDryRun {
				if !errors.Is(err, ErrDryRun) {
					t.Fatalf("Expected ErrDryRun, got %v", err)
				}
			} else if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				var safetyErr *SafetyError
				if !errors.As(err, &safetyErr) {
					t.Errorf("Expected SafetyError, got %T", err)
				}
			} else if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			if job.Confirmed() != tt.wantConfirm {
				t.Errorf("Expected confirmed=%v, got %v", tt.wantConfirm, job.Confirmed())
			}
		})
	}
}

func TestConfirmedOnlyViaGuard(t *testing.T) {
	job := &Job{Target: testEnv("local", models.Unprotected)}
	if job.Confirmed() {
		t.Error("Expected a fresh job to be unconfirmed")
	}
}
