package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeJSON(t *testing.T) {
	ts, err := time.Parse(time.RFC3339Nano, "2006-01-02T15:04:05.999Z")
	assert.Nil(t, err)
	t1 := NewTime(ts)
	s, err := json.Marshal(t1)
	assert.Nil(t, err)
	assert.EqualValues(t, "1136214245999", string(s))

	var t2 Time
	assert.NoError(t, json.Unmarshal([]byte("1136214245999"), &t2))
	assert.True(t, t1.Equal(t2))

	zero, err := json.Marshal(Time{})
	assert.NoError(t, err)
	assert.Equal(t, "0", string(zero))
}

func TestTimeScan(t *testing.T) {
	var v Time
	now := time.Now()
	assert.NoError(t, v.Scan(now))
	assert.True(t, v.Time.Equal(now))
	assert.Error(t, v.Scan("2006-01-02"))

	value, err := v.Value()
	assert.NoError(t, err)
	assert.Equal(t, now, value)
}

func TestNow(t *testing.T) {
	n := Now()
	assert.Equal(t, 0, n.Nanosecond()%int(time.Millisecond))
}
