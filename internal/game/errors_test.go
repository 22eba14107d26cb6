package game

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"trivia-service/internal/models"
)

func TestActiveSessionErrorCarriesSession(t *testing.T) {
	sess := &models.GameSession{ID: "abc-123", Mode: "quick"}
	var err error = &ActiveSessionError{Session: sess}

	var ase *ActiveSessionError
	if !errors.As(err, &ase) {
		t.Fatal("errors.As failed to unwrap ActiveSessionError")
	}
	if ase.Session.ID != "abc-123" {
		t.Fatalf("carried session id=%q, want abc-123", ase.Session.ID)
	}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Fatalf("error message %q does not name the session", err.Error())
	}
}

func TestWrappedSentinelsSurviveAnnotation(t *testing.T) {
	cases := []error{ErrSupply, ErrSubmission, ErrUnauthenticated, ErrAlreadyAnswered}
	for _, sentinel := range cases {
		wrapped := fmt.Errorf("%w: extra detail", sentinel)
		if !errors.Is(wrapped, sentinel) {
			t.Fatalf("wrapping lost %v", sentinel)
		}
	}
}
