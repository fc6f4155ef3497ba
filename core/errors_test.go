package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestFederationErrorMapperSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		code     int
		textCode string
	}{
		{
			name:     "event not found",
			err:      fmt.Errorf("%w: %q", ErrEventNotFound, "ev-1"),
			category: goerrors.CategoryNotFound,
			code:     http.StatusNotFound,
			textCode: FederationErrorNotFound,
		},
		{
			name:     "status not found",
			err:      ErrStatusNotFound,
			category: goerrors.CategoryNotFound,
			code:     http.StatusNotFound,
			textCode: FederationErrorNotFound,
		},
		{
			name:     "open event conflict",
			err:      fmt.Errorf("%w: status %q", ErrOpenEventExists, "st-1"),
			category: goerrors.CategoryConflict,
			code:     http.StatusConflict,
			textCode: FederationErrorDeliveryConflict,
		},
		{
			name:     "keys unprovisioned",
			err:      ErrKeysUnprovisioned,
			category: goerrors.CategoryOperation,
			textCode: FederationErrorKeysUnprovisioned,
		},
		{
			name:     "invalid activity type",
			err:      fmt.Errorf("%w: %q", ErrInvalidActivityType, "boost"),
			category: goerrors.CategoryBadInput,
			code:     http.StatusBadRequest,
			textCode: FederationErrorBadInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := federationErrorMapper(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.Category != tc.category {
				t.Fatalf("expected category %q, got %q", tc.category, mapped.Category)
			}
			if tc.code != 0 && mapped.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, mapped.Code)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
		})
	}
}

func TestFederationErrorMapperTextHeuristics(t *testing.T) {
	mapped := federationErrorMapper(errors.New("core: forbidden: viewer may not inspect delivery event \"ev-1\""))
	if mapped.Category != goerrors.CategoryAuthz {
		t.Fatalf("expected authz category, got %q", mapped.Category)
	}
	if mapped.Code != http.StatusForbidden || mapped.TextCode != FederationErrorPermissionDenied {
		t.Fatalf("unexpected envelope %d %q", mapped.Code, mapped.TextCode)
	}

	mapped = federationErrorMapper(errors.New("core: resolve follower inboxes: dial tcp: timeout"))
	if mapped.TextCode != FederationErrorResolutionFailed {
		t.Fatalf("expected resolution failure code, got %q", mapped.TextCode)
	}

	mapped = federationErrorMapper(errors.New("core: status id is required"))
	if mapped.Category != goerrors.CategoryBadInput || mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input envelope, got %q %d", mapped.Category, mapped.Code)
	}
}

func TestFederationErrorMapperKeepsRichErrors(t *testing.T) {
	original := goerrors.New("already enveloped", goerrors.CategoryRateLimit).
		WithTextCode("CUSTOM_CODE").
		WithCode(http.StatusTooManyRequests)

	mapped := federationErrorMapper(original)
	if mapped != original {
		t.Fatalf("rich errors must pass through")
	}
	if mapped.TextCode != "CUSTOM_CODE" || mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("envelope fields must survive: %q %d", mapped.TextCode, mapped.Code)
	}
}

func TestFederationErrorMapperFillsMissingEnvelope(t *testing.T) {
	bare := goerrors.New("conflict somewhere", goerrors.CategoryConflict)
	bare.Code = 0
	bare.TextCode = ""

	mapped := federationErrorMapper(bare)
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected conflict status fill-in, got %d", mapped.Code)
	}
	if mapped.TextCode != FederationErrorDeliveryConflict {
		t.Fatalf("expected conflict text code fill-in, got %q", mapped.TextCode)
	}
}

func TestFederationErrorMapperNil(t *testing.T) {
	if federationErrorMapper(nil) != nil {
		t.Fatalf("nil must map to nil")
	}
}
