package memory

import (
	"testing"

	"github.com/mohitkumar/dagforge/persistence"
	"github.com/mohitkumar/dagforge/persistence/persistencetest"
	"github.com/stretchr/testify/suite"
)

func TestMemoryStorage(t *testing.T) {
	suite.Run(t, &persistencetest.StorageSuite{
		NewStorage: func(t *testing.T) persistence.Storage {
			return NewMemoryStorage()
		},
	})
}
