package duplicate_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDuplicate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Duplicate Suite")
}
