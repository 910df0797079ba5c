package summary_test

import (
	"testing"

	"fieldmonitor/testutil"
)

func TestSummaryDoesNotTouchStorage(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(
		testutil.InternalImportForbidden,
		testutil.ThirdPartyImportForbidden("github.com/shopspring/decimal"),
	), "aggregates are pure functions of a snapshot")
}

func TestSummaryHasNoTransitiveInfraDependency(t *testing.T) {
	if testing.Short() {
		t.Skip("shells out to go list")
	}
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InfraImportForbidden, "aggregates are pure functions of a snapshot")
}
