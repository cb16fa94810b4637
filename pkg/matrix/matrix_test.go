package matrix

import (
	"errors"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portmux/pkg/pin"
	"portmux/pkg/pinmanager"
	"portmux/pkg/port"
	"portmux/pkg/raspberry"
)

const (
	H = port.High
	L = port.Low
)

func ids(numbers ...int) []pin.ID {
	p, err := pin.Ints(numbers)
	if err != nil {
		panic(err)
	}
	return p
}

func levels(e *raspberry.Emulator, pins []pin.ID) port.Frame {
	f := port.NewFrame(len(pins))
	for i, id := range pins {
		f[i] = e.Level(id)
	}
	return f
}

func newManager() (*pinmanager.Manager, *raspberry.Emulator) {
	e := raspberry.NewEmulator()
	return pinmanager.New(e), e
}

func TestNew(t *testing.T) {
	m, _ := newManager()

	o, err := New(m, ids(12, 6, 9), ids(4, 24, 19, 15), false, false)
	require.NoError(t, err)
	assert.Equal(t, 3, o.Rows())
	assert.Equal(t, 4, o.Columns())
	assert.Equal(t, 12, o.Cells())
	assert.Equal(t, ids(4, 6, 9, 12, 15, 19, 24), pin.Sort(o.OccupiedPins()))
	assert.Equal(t, ids(4, 6, 9, 12, 15, 19, 24), m.OccupiedPins())
	assert.Len(t, m.Occupants(), 2, "the matrix delegates occupancy to its ports")
}

func TestNewDuplicatePins(t *testing.T) {
	m, _ := newManager()

	_, err := New(m, ids(12, 6, 12), ids(4, 15), false, false)
	var dup *pinmanager.DuplicatePinsError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, ids(12), dup.Duplicates)
	assert.Empty(t, m.Occupants())
}

func TestNewConflictBetweenPorts(t *testing.T) {
	m, _ := newManager()

	_, err := New(m, ids(12, 6, 11, 3), ids(12, 11, 3), true, false)
	var conflict *pinmanager.PinConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, ids(3, 11, 12), conflict.Conflicts)
	assert.Empty(t, m.Occupants())
}

func TestNewNoPartialOccupancy(t *testing.T) {
	m, _ := newManager()
	_, err := m.RegisterOutputPort(ids(19))
	require.NoError(t, err)

	_, err = New(m, ids(12, 6, 9), ids(4, 24, 19, 15), false, false)
	var conflict *pinmanager.PinConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, ids(19), conflict.Conflicts)
	assert.Equal(t, ids(19), m.OccupiedPins(), "selector pins must not stay claimed")
}

func TestDimensions(t *testing.T) {
	m, _ := newManager()

	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "direct must match pins", cfg: Config{Selector: ids(2, 3), Data: ids(4), Rows: 3}},
		{name: "demultiplexed up to 2^n", cfg: Config{Selector: ids(5, 6), Data: ids(7), Rows: 4, SelectorDemuxed: true}, ok: true},
		{name: "demultiplexed above 2^n", cfg: Config{Selector: ids(8, 9), Data: ids(10), Rows: 5, SelectorDemuxed: true}},
		{name: "no spare cell address", cfg: Config{Selector: ids(16, 17), Data: ids(20, 21), Rows: 4, Columns: 4, SelectorDemuxed: true, DataDemuxed: true}},
		{name: "negative", cfg: Config{Selector: ids(11), Data: ids(13), Columns: -1, DataDemuxed: true}},
		{name: "empty selector", cfg: Config{Data: ids(14)}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			before := m.OccupiedPins()
			_, err := Open(m, test.cfg)
			if test.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, before, m.OccupiedPins())
		})
	}
}

func TestCellsAreIndependent(t *testing.T) {
	m, _ := newManager()
	o, err := New(m, ids(12, 6, 9), ids(4, 24, 19, 15), false, false)
	require.NoError(t, err)

	require.NoError(t, o.SetValue(1, 2, H))
	v, err := o.Value(1, 2)
	require.NoError(t, err)
	assert.Equal(t, H, v)

	want := []port.Frame{
		{L, L, L, L},
		{L, L, H, L},
		{L, L, L, L},
	}
	if diff := deep.Equal(o.Grid(), want); diff != nil {
		t.Error(diff)
	}

	for r := 0; r < o.Rows(); r++ {
		for c := 0; c < o.Columns(); c++ {
			require.NoError(t, o.Fill(L))
			require.NoError(t, o.SetValue(r, c, H))

			g := o.Grid()
			for rr := range g {
				for cc := range g[rr] {
					wantLevel := L
					if rr == r && cc == c {
						wantLevel = H
					}
					assert.Equal(t, wantLevel, g[rr][cc], "set (%d,%d) read (%d,%d)", r, c, rr, cc)
				}
			}
		}
	}
}

func TestOutOfRange(t *testing.T) {
	m, _ := newManager()
	o, err := New(m, ids(12, 6, 9), ids(4, 24, 19, 15), false, false)
	require.NoError(t, err)

	for _, rc := range [][2]int{{3, 0}, {0, 4}, {-1, 0}, {0, -1}} {
		err := o.SetValue(rc[0], rc[1], H)
		var oor *port.IndexOutOfRangeError
		assert.True(t, errors.As(err, &oor), "%v: %v", rc, err)

		_, err = o.Value(rc[0], rc[1])
		assert.True(t, errors.As(err, &oor), "%v: %v", rc, err)
	}

	var mismatch *port.LengthMismatchError
	assert.True(t, errors.As(o.SetRow(0, port.Frame{H}), &mismatch))
	assert.Error(t, o.SetRow(3, port.Frame{H, H, H, H}))
}

func TestInvalidLevel(t *testing.T) {
	m, _ := newManager()
	o, err := New(m, ids(12, 6, 9), ids(4, 24, 19, 15), false, false)
	require.NoError(t, err)
	require.NoError(t, o.SetValue(1, 1, H))

	var invalid *port.InvalidStateError
	assert.True(t, errors.As(o.SetValue(0, 2, port.Invalid), &invalid))
	assert.Equal(t, 2, invalid.Index)
	assert.True(t, errors.As(o.SetValue(0, 0, port.StateType(7)), &invalid))
	assert.True(t, errors.As(o.SetRow(2, port.Frame{H, port.Invalid, H, H}), &invalid))
	assert.Equal(t, 1, invalid.Index)
	assert.True(t, errors.As(o.Fill(port.StateType(-3)), &invalid))

	want := []port.Frame{{L, L, L, L}, {L, H, L, L}, {L, L, L, L}}
	assert.Equal(t, want, o.Grid(), "rejected levels must not modify the grid")
}

func TestScanDirect(t *testing.T) {
	m, e := newManager()
	sel, data := ids(12, 6, 9), ids(4, 24, 19, 15)
	o, err := New(m, sel, data, false, false)
	require.NoError(t, err)

	require.NoError(t, o.SetRow(0, port.Frame{H, L, L, H}))
	require.NoError(t, o.SetValue(2, 1, H))

	// the write is deferred to the next activation
	assert.Equal(t, 0, e.Writes(pin.GPIO4))

	want := []struct {
		sel, data port.Frame
	}{
		{sel: port.Frame{H, L, L}, data: port.Frame{H, L, L, H}},
		{sel: port.Frame{L, H, L}, data: port.Frame{L, L, L, L}},
		{sel: port.Frame{L, L, H}, data: port.Frame{L, H, L, L}},
		{sel: port.Frame{H, L, L}, data: port.Frame{H, L, L, H}},
	}
	for i, w := range want {
		assert.Equal(t, i%3, o.Position())
		require.NoError(t, o.Activate())
		assert.Equal(t, w.sel, levels(e, sel), "activation %d selector", i)
		assert.Equal(t, w.data, levels(e, data), "activation %d data", i)
		assert.Equal(t, w.sel, o.Selector().Frame())
		assert.Equal(t, w.data, o.Data().Frame())
	}
}

func TestScanDemultiplexedRows(t *testing.T) {
	m, e := newManager()
	sel, data := ids(2, 3), ids(4, 5, 6)
	o, err := Open(m, Config{Selector: sel, Data: data, SelectorDemuxed: true, Rows: 4})
	require.NoError(t, err)
	assert.Equal(t, 12, o.Cells())

	for r := 0; r < 4; r++ {
		require.NoError(t, o.SetValue(r, r%3, H))
	}

	want := []struct {
		sel, data port.Frame
	}{
		{sel: port.Frame{L, L}, data: port.Frame{H, L, L}},
		{sel: port.Frame{H, L}, data: port.Frame{L, H, L}},
		{sel: port.Frame{L, H}, data: port.Frame{L, L, H}},
		{sel: port.Frame{H, H}, data: port.Frame{H, L, L}},
	}
	for i, w := range want {
		require.NoError(t, o.Activate())
		assert.Equal(t, w.sel, levels(e, sel), "row %d selector", i)
		assert.Equal(t, w.data, levels(e, data), "row %d data", i)
	}
	assert.Equal(t, 0, o.Position(), "scan wraps after the last row")
}

func TestScanDemultiplexedColumns(t *testing.T) {
	m, e := newManager()
	sel, data := ids(2, 3), ids(4, 5)
	o, err := Open(m, Config{Selector: sel, Data: data, DataDemuxed: true, Columns: 3})
	require.NoError(t, err)

	require.NoError(t, o.SetValue(0, 0, H))
	require.NoError(t, o.SetValue(1, 0, H))
	require.NoError(t, o.SetValue(1, 2, H))

	want := []struct {
		sel, data port.Frame
	}{
		{sel: port.Frame{H, H}, data: port.Frame{L, L}},
		{sel: port.Frame{L, L}, data: port.Frame{H, L}},
		{sel: port.Frame{L, H}, data: port.Frame{L, H}},
	}
	for i, w := range want {
		require.NoError(t, o.Activate())
		assert.Equal(t, w.sel, levels(e, sel), "column %d selector", i)
		assert.Equal(t, w.data, levels(e, data), "column %d data", i)
	}
}

func TestScanDemultiplexedCells(t *testing.T) {
	m, e := newManager()
	sel, data := ids(2, 3), ids(4, 5)
	o, err := New(m, sel, data, true, true)
	require.NoError(t, err)

	// a low cell drives row 2, which is outside the 2x2 grid
	require.NoError(t, o.Activate())
	assert.Equal(t, port.Frame{L, H}, levels(e, sel))
	assert.Equal(t, port.Frame{L, L}, levels(e, data))

	require.NoError(t, o.SetValue(0, 1, H))
	require.NoError(t, o.SetValue(1, 0, H))

	want := []struct {
		sel, data port.Frame
	}{
		{sel: port.Frame{L, L}, data: port.Frame{H, L}},
		{sel: port.Frame{H, L}, data: port.Frame{L, L}},
		{sel: port.Frame{L, H}, data: port.Frame{L, L}},
		{sel: port.Frame{L, H}, data: port.Frame{L, L}},
		{sel: port.Frame{L, L}, data: port.Frame{H, L}},
	}
	for i, w := range want {
		require.NoError(t, o.Activate())
		assert.Equal(t, w.sel, levels(e, sel), "step %d selector", i)
		assert.Equal(t, w.data, levels(e, data), "step %d data", i)
	}
}

func TestScanDemultiplexedCellsAllLow(t *testing.T) {
	m, e := newManager()
	sel, data := ids(2, 3), ids(4, 5)
	o, err := Open(m, Config{Selector: sel, Data: data, Rows: 3, Columns: 3, SelectorDemuxed: true, DataDemuxed: true})
	require.NoError(t, err)

	for i := 0; i < o.Cells(); i++ {
		require.NoError(t, o.Activate())
		assert.Equal(t, port.Frame{H, H}, levels(e, sel), "step %d selector", i)
		assert.Equal(t, port.Frame{L, L}, levels(e, data), "step %d data", i)
	}

	// cell (0,0) is driven with all lines low, unlike the empty grid
	require.NoError(t, o.SetValue(0, 0, H))
	require.NoError(t, o.Activate())
	assert.Equal(t, port.Frame{L, L}, levels(e, sel))
	assert.Equal(t, port.Frame{L, L}, levels(e, data))
	assert.Equal(t, 1, o.Position())
}

func TestNoSpareCellAddress(t *testing.T) {
	m, _ := newManager()

	_, err := Open(m, Config{Selector: ids(2), Data: ids(4, 5), Rows: 2, Columns: 4, SelectorDemuxed: true, DataDemuxed: true})
	assert.ErrorIs(t, err, ErrInvalidDimension)
	assert.Empty(t, m.OccupiedPins())

	// a spare column address is enough
	_, err = Open(m, Config{Selector: ids(2), Data: ids(4, 5), Rows: 2, Columns: 3, SelectorDemuxed: true, DataDemuxed: true})
	assert.NoError(t, err)
}

func TestActivateFailure(t *testing.T) {
	m, e := newManager()
	o, err := New(m, ids(2, 3), ids(4, 5), false, false)
	require.NoError(t, err)

	e.Fail(errors.New("bus error"))
	assert.Error(t, o.Activate())
}

func TestScheduledMatrix(t *testing.T) {
	m, e := newManager()
	// a single row keeps the driven levels stable between activations
	o, err := New(m, ids(6), ids(4, 24, 19, 15), false, false)
	require.NoError(t, err)
	require.NoError(t, o.SetValue(0, 2, H))

	m.AddActivePort(o)
	m.Start()
	defer m.Close()

	assert.Eventually(t, func() bool {
		return e.Level(pin.GPIO6) == H && e.Level(pin.GPIO19) == H
	}, time.Second, time.Millisecond)
}

func TestClose(t *testing.T) {
	m, _ := newManager()
	o, err := New(m, ids(12, 6, 9), ids(4, 24, 19, 15), false, false)
	require.NoError(t, err)
	m.AddActivePort(o)

	require.NoError(t, o.Close())
	assert.True(t, o.Stopped())
	assert.Empty(t, m.OccupiedPins())
	m.Scheduler().Cycle()
	assert.Equal(t, 0, m.Scheduler().Len())

	_, err = New(m, ids(12, 6, 9), ids(4, 24, 19, 15), false, false)
	assert.NoError(t, err)
}
