// Package matrix composes a selector port and a data port to a logical grid of output cells.
//
// The selector lines address a row, the data lines carry the values of the row.
// Each side is either direct (one pin per logical line) or demultiplexed
// (the pins carry the binary address of one logical line). One activation drives one
// address of the grid, successive activations scan all addresses.
//
// With both sides demultiplexed every activation drives a single cell. A low cell drives
// an address outside the grid, so such a matrix needs a spare row or column address:
// Rows < 2^len(Selector) or Columns < 2^len(Data).
package matrix

import (
	"errors"
	"fmt"
	"sync"

	"github.com/womat/debug"

	"portmux/pkg/pin"
	"portmux/pkg/pinmanager"
	"portmux/pkg/port"
)

// ErrInvalidDimension is returned if a logical dimension doesn't fit the pins of its port.
var ErrInvalidDimension = errors.New("invalid matrix dimension")

// Encoding is the physical encoding of the logical lines of one port.
type Encoding int

const (
	// Direct maps each pin to one logical line.
	Direct Encoding = iota
	// Demultiplexed encodes the address of one logical line in binary, pin 0 is the lowest bit.
	Demultiplexed
)

func (e Encoding) String() string {
	if e == Demultiplexed {
		return "demultiplexed"
	}
	return "direct"
}

func encodingOf(demuxed bool) Encoding {
	if demuxed {
		return Demultiplexed
	}
	return Direct
}

// scanMode defines the address unit of one activation.
type scanMode int

const (
	scanRows scanMode = iota
	scanColumns
	scanCells
)

// Config describes a matrix. Rows and Columns default to the pin count of their port.
type Config struct {
	Selector        []pin.ID
	Data            []pin.ID
	SelectorDemuxed bool
	DataDemuxed     bool
	Rows            int
	Columns         int
}

// Output is a grid of Rows x Columns output cells. It occupies no pins itself,
// its selector and data ports do.
type Output struct {
	port.Control

	manager  *pinmanager.Manager
	selector *port.InputPort
	data     *port.OutputPort

	selectorEncoding Encoding
	dataEncoding     Encoding
	rows, columns    int
	mode             scanMode

	// blankSel and blankData address no cell, used by the cell scan for low cells
	blankSel, blankData port.Frame

	// mu guards cells and cursor
	mu     sync.Mutex
	cells  []port.Frame
	cursor int
}

// New registers input as selector and output as data port with m and returns a grid of
// len(input) x len(output) cells.
func New(m *pinmanager.Manager, input, output []pin.ID, inputDemuxed, outputDemuxed bool) (*Output, error) {
	return Open(m, Config{
		Selector:        input,
		Data:            output,
		SelectorDemuxed: inputDemuxed,
		DataDemuxed:     outputDemuxed,
	})
}

// Open registers both ports of cfg with m. Either both ports are registered or none.
// The matrix isn't activated until it's added to the scheduler with m.AddActivePort.
func Open(m *pinmanager.Manager, cfg Config) (*Output, error) {
	if len(cfg.Selector) == 0 || len(cfg.Data) == 0 {
		return nil, pinmanager.ErrEmptyDefinition
	}

	selEnc, dataEnc := encodingOf(cfg.SelectorDemuxed), encodingOf(cfg.DataDemuxed)
	rows, err := dimension(cfg.Rows, len(cfg.Selector), selEnc)
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	columns, err := dimension(cfg.Columns, len(cfg.Data), dataEnc)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var blankSel, blankData port.Frame
	if selEnc == Demultiplexed && dataEnc == Demultiplexed {
		if blankSel, blankData, err = blank(rows, len(cfg.Selector), columns, len(cfg.Data)); err != nil {
			return nil, err
		}
	}

	selector, data, err := m.RegisterInputOutputPorts(cfg.Selector, cfg.Data)
	if err != nil {
		return nil, err
	}

	o := &Output{
		manager:          m,
		selector:         selector,
		data:             data,
		selectorEncoding: selEnc,
		dataEncoding:     dataEnc,
		rows:             rows,
		columns:          columns,
		blankSel:         blankSel,
		blankData:        blankData,
		cells:            make([]port.Frame, rows),
	}
	for i := range o.cells {
		o.cells[i] = port.NewFrame(columns)
	}

	switch {
	case selEnc == Demultiplexed && dataEnc == Demultiplexed:
		o.mode = scanCells
	case selEnc == Direct && dataEnc == Demultiplexed:
		o.mode = scanColumns
	default:
		o.mode = scanRows
	}

	debug.DebugLog.Printf("matrix %dx%d opened (selector %v, data %v)", rows, columns, selEnc, dataEnc)
	return o, nil
}

// dimension returns the logical size of a port with n pins.
func dimension(size, n int, enc Encoding) (int, error) {
	if size == 0 {
		size = n
	}

	switch {
	case size < 1:
		return 0, fmt.Errorf("%d lines: %w", size, ErrInvalidDimension)
	case enc == Direct && size != n:
		return 0, fmt.Errorf("%d direct lines on %d pins: %w", size, n, ErrInvalidDimension)
	case enc == Demultiplexed && n < 31 && size > 1<<n:
		return 0, fmt.Errorf("%d demultiplexed lines on %d pins: %w", size, n, ErrInvalidDimension)
	}
	return size, nil
}

// blank returns the frames of an address outside a rows x columns grid on demultiplexed
// selector and data pins.
func blank(rows, selPins, columns, dataPins int) (sel, data port.Frame, err error) {
	switch {
	case selPins < 31 && rows < 1<<selPins:
		return encode(rows, selPins, Demultiplexed), port.NewFrame(dataPins), nil
	case dataPins < 31 && columns < 1<<dataPins:
		return port.NewFrame(selPins), encode(columns, dataPins, Demultiplexed), nil
	}
	return nil, nil, fmt.Errorf("%dx%d grid leaves no spare address: %w", rows, columns, ErrInvalidDimension)
}

// Rows returns the number of logical rows.
func (o *Output) Rows() int {
	return o.rows
}

// Columns returns the number of logical columns.
func (o *Output) Columns() int {
	return o.columns
}

// Cells returns the number of addressable cells.
func (o *Output) Cells() int {
	return o.rows * o.columns
}

// Selector returns the selector port.
func (o *Output) Selector() *port.InputPort {
	return o.selector
}

// Data returns the data port.
func (o *Output) Data() *port.OutputPort {
	return o.data
}

// Encodings returns the encoding of the selector and the data port.
func (o *Output) Encodings() (selector, data Encoding) {
	return o.selectorEncoding, o.dataEncoding
}

// OccupiedPins returns the pins of both ports.
func (o *Output) OccupiedPins() []pin.ID {
	return append(o.selector.OccupiedPins(), o.data.OccupiedPins()...)
}

func (o *Output) check(row, column int) error {
	if row < 0 || row >= o.rows {
		return &port.IndexOutOfRangeError{Index: row, Len: o.rows}
	}
	if column < 0 || column >= o.columns {
		return &port.IndexOutOfRangeError{Index: column, Len: o.columns}
	}
	return nil
}

// SetValue sets one cell. The hardware follows with the next activation of the cell.
func (o *Output) SetValue(row, column int, s port.StateType) error {
	if err := o.check(row, column); err != nil {
		return err
	}
	if !s.Valid() {
		return &port.InvalidStateError{Index: column, State: s}
	}

	o.mu.Lock()
	o.cells[row][column] = s
	o.mu.Unlock()
	return nil
}

// Value returns one cell.
func (o *Output) Value(row, column int) (port.StateType, error) {
	if err := o.check(row, column); err != nil {
		return port.Invalid, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cells[row][column], nil
}

// SetRow replaces the values of one row.
func (o *Output) SetRow(row int, f port.Frame) error {
	if row < 0 || row >= o.rows {
		return &port.IndexOutOfRangeError{Index: row, Len: o.rows}
	}
	if len(f) != o.columns {
		return &port.LengthMismatchError{Want: o.columns, Got: len(f)}
	}
	if err := f.Check(); err != nil {
		return err
	}

	o.mu.Lock()
	copy(o.cells[row], f)
	o.mu.Unlock()
	return nil
}

// Fill sets all cells to s.
func (o *Output) Fill(s port.StateType) error {
	if !s.Valid() {
		return &port.InvalidStateError{State: s}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, r := range o.cells {
		for c := range r {
			r[c] = s
		}
	}
	return nil
}

// Grid returns a copy of all cells, indexed [row][column].
func (o *Output) Grid() []port.Frame {
	o.mu.Lock()
	defer o.mu.Unlock()

	g := make([]port.Frame, len(o.cells))
	for i, r := range o.cells {
		g[i] = r.Clone()
	}
	return g
}

// Position returns the address the next activation drives: a row, a column or a cell
// index (row*Columns+column), depending on the encodings.
func (o *Output) Position() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cursor
}

// Activate drives the current address and advances to the next one.
func (o *Output) Activate() error {
	o.mu.Lock()
	sel, data := o.step()
	o.mu.Unlock()

	if err := o.selector.Update(sel); err != nil {
		return err
	}
	if err := o.data.SetFrame(data); err != nil {
		return err
	}

	if err := port.Drive(o.manager.Driver(), o.selector.Definition(), sel); err != nil {
		return fmt.Errorf("drive selector: %w", err)
	}
	if err := o.data.Activate(); err != nil {
		return fmt.Errorf("drive data: %w", err)
	}
	return nil
}

// step returns the selector and data frames of the cursor and advances it. mu must be held.
func (o *Output) step() (sel, data port.Frame) {
	switch o.mode {
	case scanColumns:
		c := o.cursor
		sel = port.NewFrame(o.rows)
		for r := range o.cells {
			sel[r] = o.cells[r][c]
		}
		data = encode(c, o.data.Len(), Demultiplexed)
		o.cursor = (c + 1) % o.columns

	case scanCells:
		k := o.cursor
		o.cursor = (k + 1) % (o.rows * o.columns)
		r, c := k/o.columns, k%o.columns
		if o.cells[r][c] != port.High {
			return o.blankSel.Clone(), o.blankData.Clone()
		}
		sel = encode(r, o.selector.Len(), Demultiplexed)
		data = encode(c, o.data.Len(), Demultiplexed)

	default:
		r := o.cursor
		sel = encode(r, o.selector.Len(), o.selectorEncoding)
		data = o.cells[r].Clone()
		o.cursor = (r + 1) % o.rows
	}
	return sel, data
}

// encode returns the frame of n pins that addresses line addr.
func encode(addr, n int, enc Encoding) port.Frame {
	f := port.NewFrame(n)
	if enc == Direct {
		f[addr] = port.High
		return f
	}

	for i := 0; i < n; i++ {
		if addr&(1<<i) != 0 {
			f[i] = port.High
		}
	}
	return f
}

// Close stops the activation of the matrix and releases both ports.
func (o *Output) Close() error {
	o.Stop()
	o.manager.Release(o.selector)
	o.manager.Release(o.data)
	return nil
}

func (o *Output) String() string {
	return fmt.Sprintf("matrix %dx%d [%s | %s]", o.rows, o.columns, pin.Join(o.selector.Definition()), pin.Join(o.data.Definition()))
}
