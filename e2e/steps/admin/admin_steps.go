package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

const tokenHeader = "X-Admin-Token"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetLastResponseBody() []byte
	GetAdminToken() string
}

// RegisterSteps registers admin-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	// Refresh steps
	ctx.Step(`^I trigger a property refresh$`, steps.refresh)
	ctx.Step(`^I trigger a property refresh for keys "([^"]*)"$`, steps.refreshKeys)
	ctx.Step(`^I trigger a broadcast property refresh$`, steps.refreshBroadcast)
	ctx.Step(`^I trigger a property refresh without admin token$`, steps.refreshWithoutToken)

	// Tenant inspection steps
	ctx.Step(`^I list the tenants$`, steps.listTenants)
	ctx.Step(`^I list the tenants without admin token$`, steps.listTenantsWithoutToken)
	ctx.Step(`^I get tenant "([^"]*)"$`, steps.getTenant)
	ctx.Step(`^the tenant list should include "([^"]*)"$`, steps.tenantListShouldInclude)

	// Cleanup steps
	ctx.Step(`^I list cleanup audits for tenant "([^"]*)"$`, steps.listAudits)
	ctx.Step(`^I list cleanup audits for tenant "([^"]*)" with limit (-?\d+)$`, steps.listAuditsWithLimit)
	ctx.Step(`^I run the cleanup job$`, steps.runCleanup)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) headers() map[string]string {
	return map[string]string{tokenHeader: s.tc.GetAdminToken()}
}

// Refresh Steps

func (s *adminSteps) refresh(ctx context.Context) error {
	return s.tc.POSTWithHeaders("/admin/refresh", nil, s.headers())
}

func (s *adminSteps) refreshKeys(ctx context.Context, keys string) error {
	body := map[string]any{"keys": strings.Split(keys, ",")}
	return s.tc.POSTWithHeaders("/admin/refresh", body, s.headers())
}

func (s *adminSteps) refreshBroadcast(ctx context.Context) error {
	return s.tc.POSTWithHeaders("/admin/refresh?broadcast=true", nil, s.headers())
}

func (s *adminSteps) refreshWithoutToken(ctx context.Context) error {
	return s.tc.POSTWithHeaders("/admin/refresh", nil, nil)
}

// Tenant Steps

func (s *adminSteps) listTenants(ctx context.Context) error {
	return s.tc.GET("/admin/tenants", s.headers())
}

func (s *adminSteps) listTenantsWithoutToken(ctx context.Context) error {
	return s.tc.GET("/admin/tenants", nil)
}

func (s *adminSteps) getTenant(ctx context.Context, tenantID string) error {
	return s.tc.GET("/admin/tenants/"+tenantID, s.headers())
}

func (s *adminSteps) tenantListShouldInclude(ctx context.Context, tenantID string) error {
	var resp struct {
		Tenants []struct {
			TenantID string `json:"tenant_id"`
		} `json:"tenants"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &resp); err != nil {
		return fmt.Errorf("failed to parse tenant list: %w", err)
	}
	for _, t := range resp.Tenants {
		if t.TenantID == tenantID {
			return nil
		}
	}
	return fmt.Errorf("tenant %s not listed\nResponse: %s", tenantID, string(s.tc.GetLastResponseBody()))
}

// Cleanup Steps

func (s *adminSteps) listAudits(ctx context.Context, tenantID string) error {
	return s.tc.GET("/admin/cleanup/audits?tenant="+tenantID, s.headers())
}

func (s *adminSteps) listAuditsWithLimit(ctx context.Context, tenantID string, limit int) error {
	return s.tc.GET(fmt.Sprintf("/admin/cleanup/audits?tenant=%s&limit=%d", tenantID, limit), s.headers())
}

func (s *adminSteps) runCleanup(ctx context.Context) error {
	return s.tc.POSTWithHeaders("/admin/cleanup/run", nil, s.headers())
}
