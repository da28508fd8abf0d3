package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTicket(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		subject string
		want    TicketPriority
	}{
		{"technical issue is high", "Technical Issue", "App crashes", TicketPriorityHigh},
		{"account problem is high", "Account Problem", "Locked out", TicketPriorityHigh},
		{"feature request is low", "Feature Request", "Dark mode", TicketPriorityLow},
		{"urgent subject wins over feature request", "Feature Request", "URGENT: need dark mode", TicketPriorityUrgent},
		{"urgent subject in lower case", "Other", "this is urgent please", TicketPriorityUrgent},
		{"urgent marker in reason", "Urgent Issue", "Hi", TicketPriorityUrgent},
		{"reason marker is case sensitive", "urgent issue", "Hi", TicketPriorityNormal},
		{"reason must match exactly", "technical issue", "Hi", TicketPriorityNormal},
		{"reason with trailing space does not match", "Technical Issue ", "Hi", TicketPriorityNormal},
		{"billing is normal", "Billing Question", "Refund", TicketPriorityNormal},
		{"empty input is normal", "", "", TicketPriorityNormal},
		{"non-ascii subject folds", "Other", "ÜRGENT URGENT", TicketPriorityUrgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTicket(tt.reason, tt.subject))
		})
	}
}

func TestClassifyTicket_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, TicketPriorityHigh, ClassifyTicket("Technical Issue", "Charts do not load"))
	}
}

func TestTicketStatus_IsValid(t *testing.T) {
	assert.True(t, TicketStatusOpen.IsValid())
	assert.True(t, TicketStatusInProgress.IsValid())
	assert.True(t, TicketStatusClosed.IsValid())
	assert.False(t, TicketStatus("resolved").IsValid())
	assert.False(t, TicketStatus("in_progress").IsValid())
}

func TestCreateTicketParams_Validate(t *testing.T) {
	err := CreateTicketParams{Email: "not-an-email"}.Validate("TicketService.Create")
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "TicketService.Create", ve.Op)
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "reason")
	assert.Contains(t, ve.Fields, "subject")
	assert.Contains(t, ve.Fields, "message")

	ok := CreateTicketParams{
		Email:   "trader@example.com",
		Reason:  "Other",
		Subject: "Hello",
		Message: "Question about indicators",
	}
	assert.NoError(t, ok.Validate("TicketService.Create"))
}
