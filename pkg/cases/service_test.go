package cases

import (
	"context"
	"errors"
	"testing"

	"github.com/pharmaguard/pipeline/pkg/common/models"
	"github.com/pharmaguard/pipeline/pkg/followup"
	"github.com/pharmaguard/pipeline/pkg/scoring"
)

func TestOverrideNormalizationRejectsBeforeAnyWrite(t *testing.T) {
	svc := NewService(nil, followup.Options{})
	action := ActionContext{Actor: "reviewer"}

	cases := []struct {
		name string
		req  models.NormalizationOverrideRequest
		want error
	}{
		{
			name: "invalid polarity",
			req:  models.NormalizationOverrideRequest{Polarity: "positive", Strength: 1, Reason: "fix"},
			want: scoring.ErrInvalidPolarity,
		},
		{
			name: "strength out of range",
			req:  models.NormalizationOverrideRequest{Polarity: "adverse", Strength: 3, Reason: "fix"},
			want: scoring.ErrInvalidStrength,
		},
		{
			name: "negative strength",
			req:  models.NormalizationOverrideRequest{Polarity: "adverse", Strength: -1, Reason: "fix"},
			want: scoring.ErrInvalidStrength,
		},
		{
			name: "missing reason",
			req:  models.NormalizationOverrideRequest{Polarity: "adverse", Strength: 1},
			want: scoring.ErrReasonRequired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.OverrideNormalization(context.Background(), "evt-1", tc.req, action)
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}
