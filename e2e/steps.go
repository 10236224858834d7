package e2e

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cucumber/godog"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the registry is running$`, tc.registryIsRunning)
	ctx.Step(`^the clock reads (\d+)$`, tc.clockReads)

	// Identity steps
	ctx.Step(`^I am signed in as "([^"]*)"$`, tc.SignIn)
	ctx.Step(`^I am not signed in$`, tc.notSignedIn)

	// Request steps
	ctx.Step(`^I issue a credential for "([^"]*)" with cid "([^"]*)"$`, tc.issue)
	ctx.Step(`^I issue a credential for "([^"]*)" with cid "([^"]*)" expiring at (\d+)$`, tc.issueExpiring)
	ctx.Step(`^I revoke the credential for "([^"]*)" with cid "([^"]*)"$`, tc.revoke)
	ctx.Step(`^I check the validity of "([^"]*)" with cid "([^"]*)"$`, tc.checkValidity)
	ctx.Step(`^I look up the credential for "([^"]*)" with cid "([^"]*)"$`, tc.lookup)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be null$`, tc.responseFieldShouldBeNull)
	ctx.Step(`^the error should be "([^"]*)"$`, tc.errorShouldBe)
	ctx.Step(`^the credential should be (valid|invalid)$`, tc.credentialShouldBe)
}

func (tc *TestContext) registryIsRunning(ctx context.Context) error {
	return tc.GET("/health/live", nil)
}

func (tc *TestContext) clockReads(ctx context.Context, ms int64) error {
	tc.SetClock(ms)
	return nil
}

func (tc *TestContext) notSignedIn(ctx context.Context) error {
	return tc.SignIn("")
}

func (tc *TestContext) issue(ctx context.Context, subject, cid string) error {
	return tc.POST("/credentials", map[string]interface{}{
		"subject_did": subject,
		"cid":         cid,
	})
}

func (tc *TestContext) issueExpiring(ctx context.Context, subject, cid string, expiresAt int64) error {
	return tc.POST("/credentials", map[string]interface{}{
		"subject_did": subject,
		"cid":         cid,
		"expires_at":  expiresAt,
	})
}

func (tc *TestContext) revoke(ctx context.Context, subject, cid string) error {
	return tc.POST("/credentials/revoke", map[string]interface{}{
		"subject_did": subject,
		"cid":         cid,
	})
}

func (tc *TestContext) checkValidity(ctx context.Context, subject, cid string) error {
	return tc.GET("/credentials/validity", url.Values{"subject_did": {subject}, "cid": {cid}})
}

func (tc *TestContext) lookup(ctx context.Context, subject, cid string) error {
	return tc.GET("/credentials", url.Values{"subject_did": {subject}, "cid": {cid}})
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if actual := tc.GetLastResponseStatus(); actual != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expectedStatus, actual, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseShouldContain(ctx context.Context, field string) error {
	if !tc.ResponseContains(field) {
		return fmt.Errorf("response does not contain field: %s\nResponse: %s", field, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	actualValue, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (tc *TestContext) responseFieldShouldBeNull(ctx context.Context, field string) error {
	actualValue, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if actualValue != nil {
		return fmt.Errorf("field %s: expected null but got %v", field, actualValue)
	}
	return nil
}

func (tc *TestContext) errorShouldBe(ctx context.Context, code string) error {
	return tc.responseFieldShouldEqual(ctx, "error", code)
}

func (tc *TestContext) credentialShouldBe(ctx context.Context, state string) error {
	if err := tc.responseStatusShouldBe(ctx, 200); err != nil {
		return err
	}
	return tc.responseFieldShouldEqual(ctx, "valid", strconv.FormatBool(state == "valid"))
}
