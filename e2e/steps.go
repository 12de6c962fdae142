package e2e

import (
	"github.com/cucumber/godog"

	"tenantgate/e2e/steps/admin"
	"tenantgate/e2e/steps/common"
	"tenantgate/e2e/steps/resolution"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	resolution.RegisterSteps(ctx, tc)
	admin.RegisterSteps(ctx, tc)
}
