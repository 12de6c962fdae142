package resolution

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/golang-jwt/jwt/v5"
)

const tenantHeader = "X-Tenant-ID"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseHeader(name string) string
	GetLastResponseBody() []byte
}

// RegisterSteps registers tenant resolution step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &resolutionSteps{tc: tc}

	ctx.Step(`^I request "([^"]*)" with header "([^"]*)" set to "([^"]*)"$`, steps.requestWithHeader)
	ctx.Step(`^I request "([^"]*)" with a bearer token for tenant "([^"]*)"$`, steps.requestWithBearer)
	ctx.Step(`^the request should resolve to tenant "([^"]*)"$`, steps.shouldResolveTo)
	ctx.Step(`^the request should not be bound to a tenant$`, steps.shouldNotBeBound)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
}

type resolutionSteps struct {
	tc TestContext
}

func (s *resolutionSteps) requestWithHeader(ctx context.Context, path, header, value string) error {
	return s.tc.GET(path, map[string]string{header: value})
}

func (s *resolutionSteps) requestWithBearer(ctx context.Context, path, tenantID string) error {
	// The gateway reads the claim without verifying the signature.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "e2e-user",
		"tenantId": tenantID,
	}).SignedString([]byte("e2e-unverified"))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	return s.tc.GET(path, map[string]string{"Authorization": "Bearer " + token})
}

func (s *resolutionSteps) shouldResolveTo(ctx context.Context, tenantID string) error {
	if got := s.tc.GetLastResponseHeader(tenantHeader); got != tenantID {
		return fmt.Errorf("expected %s header %q but got %q\nResponse: %s",
			tenantHeader, tenantID, got, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *resolutionSteps) shouldNotBeBound(ctx context.Context) error {
	if got := s.tc.GetLastResponseHeader(tenantHeader); got != "" {
		return fmt.Errorf("expected no %s header but got %q", tenantHeader, got)
	}
	return nil
}

func (s *resolutionSteps) errorShouldBe(ctx context.Context, code string) error {
	got, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if got != code {
		return fmt.Errorf("expected error %q but got %v", code, got)
	}
	return nil
}
