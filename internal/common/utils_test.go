package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , ,"))
	assert.Equal(t, []string{"temperature"}, SplitList("temperature"))
	assert.Equal(t, []string{"temperature", "wind_speed"}, SplitList(" temperature,,wind_speed "))
}
