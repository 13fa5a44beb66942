package connectors

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

// The test connectors let test_mode profiles exercise the full state machine
// without leaving the process. Behavior is keyed off the trailing cents of
// the amount so scenarios stay deterministic:
//
//	..01  authentication failed
//	..02  challenge required
//	..03  connector error
//	..05  processor decline
const (
	testAuthName      = "testauth"
	testProcessorName = "testprocessor"
)

func init() {
	RegisterAuthenticator(testAuthName, func(cfg Config) (Authenticator, error) {
		return testAuth{}, nil
	})
	RegisterProcessor(testProcessorName, func(cfg Config) (Processor, error) {
		return testProcessor{}, nil
	})
}

type testAuth struct{}

func (testAuth) Authenticate(_ context.Context, req AuthRequest) (*AuthResponse, error) {
	switch req.AmountCents % 100 {
	case 1:
		return &AuthResponse{
			Outcome:      AuthOutcomeFailed,
			ErrorCode:    "auth_declined",
			ErrorMessage: "authentication declined by test connector",
		}, nil
	case 2:
		token := uuid.NewString()
		return &AuthResponse{
			Outcome:           AuthOutcomeChallenge,
			ConnectorAuthID:   token,
			ChallengeURL:      "https://acs.test/challenge/" + token,
			ContinuationToken: token,
			ThreeDSVersion:    "2.2.0",
		}, nil
	case 3:
		return nil, pkgerrors.New(pkgerrors.CodeConnectorError, "test connector outage")
	}
	if req.ForceChallenge {
		token := uuid.NewString()
		return &AuthResponse{
			Outcome:           AuthOutcomeChallenge,
			ConnectorAuthID:   token,
			ChallengeURL:      "https://acs.test/challenge/" + token,
			ContinuationToken: token,
			ThreeDSVersion:    "2.2.0",
		}, nil
	}
	return &AuthResponse{
		Outcome:         AuthOutcomeFrictionlessPass,
		ConnectorAuthID: uuid.NewString(),
		Cavv:            "AAABBJg0VhI0VniQEjRWAAAAAAA",
		ECI:             "05",
		ThreeDSVersion:  "2.2.0",
	}, nil
}

type testProcessor struct{}

func (testProcessor) Authorize(_ context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	if req.AmountCents%100 == 5 {
		return &AuthorizeResponse{
			Approved:       false,
			DeclineCode:    "card_declined",
			DeclineMessage: "declined by test processor",
		}, nil
	}
	resp := &AuthorizeResponse{
		Approved:            true,
		ConnectorPaymentID:  fmt.Sprintf("tp_%s", uuid.NewString()),
		AmountCapturedCents: req.AmountCents,
	}
	if req.SetupMandate {
		resp.ConnectorMandateID = fmt.Sprintf("tpm_%s", uuid.NewString())
	}
	return resp, nil
}

func (testProcessor) Refund(_ context.Context, req RefundRequest) (*RefundResponse, error) {
	return &RefundResponse{
		Approved:          true,
		ConnectorRefundID: fmt.Sprintf("tpr_%s", uuid.NewString()),
	}, nil
}
