package gossip

import (
	"testing"

	. "github.com/dogmatiq/topology/internal/test"
)

func TestDelegate(t *testing.T) {
	t.Parallel()

	t.Run("func setProperties()", func(t *testing.T) {
		t.Parallel()

		t.Run("it returns the previous properties so they can be restored", func(t *testing.T) {
			t.Parallel()

			d := &delegate{}
			d.setProperties(map[string]string{"color": "blue"})

			prev := d.setProperties(map[string]string{"color": "red"})
			Expect(t, "unexpected previous properties", prev, map[string]string{"color": "blue"})

			d.setProperties(prev)
			Expect(t, "unexpected properties", d.meta.Properties, map[string]string{"color": "blue"})
		})
	})
}
