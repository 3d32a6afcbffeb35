package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace_zeroValue(t *testing.T) {
	var ns Namespace
	assert.Nil(t, ns.Get(`a`))
	_, ok := ns.Lookup(`a`)
	assert.False(t, ok)
	assert.Empty(t, ns.Keys())

	ns.Set(`a`, `1`)
	assert.Equal(t, `1`, ns.Get(`a`))
}

func TestNamespace_nilReceiver(t *testing.T) {
	var ns *Namespace
	require.NotPanics(t, func() {
		ns.Set(`a`, 1)
		assert.Nil(t, ns.Get(`a`))
		assert.Equal(t, ``, ns.String(`a`))
		assert.False(t, ns.Truthy(`a`))
		assert.Nil(t, ns.Keys())
		assert.Nil(t, ns.Snapshot())
	})
}

func TestNamespace_clearRetainsKey(t *testing.T) {
	ns := New()
	ns.Set(`timer`, 5)
	ns.Clear(`timer`)
	v, ok := ns.Lookup(`timer`)
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, []string{`timer`}, ns.Keys())
}

func TestNamespace_Truthy(t *testing.T) {
	ns := New()
	for _, tc := range [...]struct {
		name  string
		value any
		want  bool
	}{
		{`nil`, nil, false},
		{`false`, false, false},
		{`true`, true, true},
		{`empty string`, ``, false},
		{`string`, `x`, true},
		{`zero int`, 0, false},
		{`int`, 3, true},
		{`struct`, struct{}{}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ns.Set(`k`, tc.value)
			assert.Equal(t, tc.want, ns.Truthy(`k`))
		})
	}
}

func TestNamespace_String(t *testing.T) {
	ns := New()
	ns.Set(`s`, `value`)
	ns.Set(`n`, 12)
	assert.Equal(t, `value`, ns.String(`s`))
	assert.Equal(t, `12`, ns.String(`n`))
	assert.Equal(t, ``, ns.String(`missing`))
}

func TestNamespace_Snapshot(t *testing.T) {
	ns := New()
	ns.Set(`b`, 2)
	ns.Set(`a`, 1)
	snap := ns.Snapshot()
	ns.Set(`a`, 3)
	assert.Equal(t, map[string]any{`a`: 1, `b`: 2}, snap)
	assert.Equal(t, []string{`a`, `b`}, ns.Keys())
}
