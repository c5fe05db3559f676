package runner

import (
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/limaJavier/placement/internal/logging"
)

// suiteLogger is shared by every runner under test
var suiteLogger logr.Logger

func TestRunner(t *testing.T) {
	suiteLogger = logging.NewTestLogger()
	RegisterFailHandler(Fail)
	RunSpecs(t, "Runner Suite")
}
