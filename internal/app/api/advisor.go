package api

import (
	"context"
	"net/http"
	"strings"

	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/req"
)

// Advise asks the AI advisor for nutrition or workout guidance.
// Auth failures on this endpoint refresh the token but never redirect to login.
func (c *Client) Advise(ctx context.Context, request AdviceRequest) (*Advice, error) {
	if request.Kind != AdviceNutrition && request.Kind != AdviceWorkout {
		return nil, errs.NewError(errs.ErrValidation, "advice type must be nutrition or workout")
	}
	if strings.TrimSpace(request.Prompt) == "" {
		return nil, errs.NewError(errs.ErrValidation, "prompt is required")
	}

	body, bodyErr := req.JSON(request)
	if bodyErr != nil {
		return nil, bodyErr
	}

	var advice Advice
	if err := c.DoJSON(ctx, Request{Method: http.MethodPost, Path: "/ai/advice", Body: body}, &advice); err != nil {
		return nil, err
	}
	if advice.Kind == "" {
		advice.Kind = request.Kind
	}
	return &advice, nil
}
