package sql

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"monogest/backend/internal/domain"
)

// "read" is a reserved word in MySQL, so the participant flag must map to
// a column name that is valid unquoted in both supported dialects. The raw
// list and mark-read queries reference it by name.
func TestParticipantReadColumnName(t *testing.T) {
	parsed, err := schema.Parse(&domain.Participant{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := parsed.LookUpField("Read")
	require.NotNil(t, field)
	require.Equal(t, "is_read", field.DBName)
}
