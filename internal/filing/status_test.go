package filing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{
		"DRAFT", "DOCUMENTS_PENDING", "UNDER_REVIEW", "CA_ASSIGNED", "PROCESSING",
		"FILED", "ACKNOWLEDGED", "COMPLETED", "REJECTED", "REFUND_INITIATED",
	} {
		status, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, Status(raw), status)
	}

	_, err := ParseStatus("PENDING")
	assert.ErrorIs(t, err, ErrUnknownStatus)
	_, err = ParseStatus("draft")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestForwardChainIsAWalk(t *testing.T) {
	staff := Actor{Role: "staff"}
	chain := []Status{
		StatusDraft, StatusDocumentsPending, StatusUnderReview, StatusCAAssigned,
		StatusProcessing, StatusFiled, StatusAcknowledged, StatusCompleted,
	}
	for i := 0; i < len(chain)-1; i++ {
		in := TransitionInput{}
		if chain[i+1] == StatusFiled {
			in.AckNumber = "ITR-ACK-0001"
		}
		err := CheckTransition(KindITR, staff, chain[i], chain[i+1], in)
		require.NoError(t, err, "%s -> %s", chain[i], chain[i+1])
	}

	// Skipping a state is never legal.
	for i := 0; i < len(chain); i++ {
		for j := i + 2; j < len(chain); j++ {
			err := CheckTransition(KindITR, staff, chain[i], chain[j], TransitionInput{AckNumber: "x"})
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", chain[i], chain[j])
		}
	}

	// Backward moves are never legal.
	for i := 1; i < len(chain); i++ {
		err := CheckTransition(KindITR, staff, chain[i], chain[i-1], TransitionInput{})
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", chain[i], chain[i-1])
	}
}

func TestRejectedReachableFromAnyNonTerminal(t *testing.T) {
	staff := Actor{Role: "staff"}
	for _, from := range []Status{
		StatusDraft, StatusDocumentsPending, StatusUnderReview, StatusCAAssigned,
		StatusProcessing, StatusFiled, StatusAcknowledged,
	} {
		err := CheckTransition(KindGST, staff, from, StatusRejected, TransitionInput{Reason: "incomplete"})
		require.NoError(t, err, string(from))

		err = CheckTransition(KindGST, staff, from, StatusRejected, TransitionInput{})
		assert.ErrorIs(t, err, ErrReasonRequired, string(from))
	}
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	staff := Actor{Role: "staff"}
	all := []Status{
		StatusDraft, StatusDocumentsPending, StatusUnderReview, StatusCAAssigned,
		StatusProcessing, StatusFiled, StatusAcknowledged, StatusCompleted,
		StatusRejected, StatusRefundInitiated,
	}
	for _, to := range all {
		err := CheckTransition(KindITR, staff, StatusRejected, to, TransitionInput{Reason: "x", AckNumber: "x", RefundAmount: 1})
		assert.ErrorIs(t, err, ErrInvalidTransition, "REJECTED -> %s", to)

		err = CheckTransition(KindITR, staff, StatusRefundInitiated, to, TransitionInput{Reason: "x", AckNumber: "x", RefundAmount: 1})
		assert.ErrorIs(t, err, ErrInvalidTransition, "REFUND_INITIATED -> %s", to)
	}

	assert.Empty(t, AllowedNext(KindITR, StatusRejected))
	assert.Empty(t, AllowedNext(KindGST, StatusCompleted))
}

func TestRefundOnlyForITRFromCompleted(t *testing.T) {
	staff := Actor{Role: "staff"}

	err := CheckTransition(KindITR, staff, StatusCompleted, StatusRefundInitiated, TransitionInput{RefundAmount: 250000})
	require.NoError(t, err)

	err = CheckTransition(KindITR, staff, StatusCompleted, StatusRefundInitiated, TransitionInput{RefundAmount: 0})
	assert.ErrorIs(t, err, ErrRefundNotDue)

	err = CheckTransition(KindGST, staff, StatusCompleted, StatusRefundInitiated, TransitionInput{RefundAmount: 250000})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = CheckTransition(KindITR, staff, StatusAcknowledged, StatusRefundInitiated, TransitionInput{RefundAmount: 250000})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOwnerMayOnlySubmit(t *testing.T) {
	owner := Actor{Role: "user", IsOwner: true}
	stranger := Actor{Role: "user", IsOwner: false}

	require.NoError(t, CheckTransition(KindITR, owner, StatusDraft, StatusDocumentsPending, TransitionInput{}))

	err := CheckTransition(KindITR, stranger, StatusDraft, StatusDocumentsPending, TransitionInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	err = CheckTransition(KindITR, owner, StatusDocumentsPending, StatusUnderReview, TransitionInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	err = CheckTransition(KindITR, owner, StatusProcessing, StatusFiled, TransitionInput{AckNumber: "A1"})
	assert.ErrorIs(t, err, ErrForbidden)

	err = CheckTransition(KindITR, owner, StatusUnderReview, StatusRejected, TransitionInput{Reason: "nope"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFiledRequiresAckNumber(t *testing.T) {
	staff := Actor{Role: "staff"}
	err := CheckTransition(KindGST, staff, StatusProcessing, StatusFiled, TransitionInput{})
	assert.ErrorIs(t, err, ErrAckRequired)

	require.NoError(t, CheckTransition(KindGST, staff, StatusProcessing, StatusFiled, TransitionInput{AckNumber: "GST-ARN-77"}))
}

func TestEditableAndDeletable(t *testing.T) {
	assert.True(t, Editable(StatusDraft))
	assert.True(t, Editable(StatusDocumentsPending))
	assert.False(t, Editable(StatusUnderReview))
	assert.False(t, Editable(StatusRejected))

	assert.True(t, Deletable(StatusDraft))
	assert.False(t, Deletable(StatusDocumentsPending))
	assert.False(t, Deletable(StatusCompleted))
}

func TestUnknownStatusRejectedBeforeGraphCheck(t *testing.T) {
	staff := Actor{Role: "staff"}
	err := CheckTransition(KindITR, staff, Status("LIMBO"), StatusRejected, TransitionInput{Reason: "x"})
	assert.ErrorIs(t, err, ErrUnknownStatus)

	err = CheckTransition(KindITR, staff, StatusDraft, Status("LIMBO"), TransitionInput{})
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
