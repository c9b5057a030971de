package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
)

// Memory is an in-memory Tabular used by tests and local development. It
// mirrors the observable behavior of the Sheets adapter closely enough to
// exercise the queue and contact protocols: appends land after the last
// non-empty row, reads trim trailing empty cells and rows, and user-entered
// appends strip a leading apostrophe the way Sheets text forcing does.
type Memory struct {
	mu     sync.Mutex
	order  []string
	ids    map[string]int64
	cells  map[string][][]string
	nextID int64

	// Fail, when set, is consulted before every operation and lets tests
	// inject remote failures. op is the method name, arg the range or title.
	Fail func(op, arg string) error
}

// NewMemory creates a workbook with the default first sheet, like a freshly
// created spreadsheet.
func NewMemory() *Memory {
	m := &Memory{
		ids:   make(map[string]int64),
		cells: make(map[string][][]string),
	}
	m.addSheet("Sheet1")
	return m
}

func (m *Memory) addSheet(title string) {
	m.order = append(m.order, title)
	m.ids[title] = m.nextID
	m.nextID++
	m.cells[title] = nil
}

func (m *Memory) fail(op, arg string) error {
	if m.Fail != nil {
		return m.Fail(op, arg)
	}
	return nil
}

// SetValues seeds a sheet's grid directly (test setup).
func (m *Memory) SetValues(title string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[title]; !ok {
		m.addSheet(title)
	}
	grid := make([][]string, len(rows))
	for i, r := range rows {
		grid[i] = append([]string(nil), r...)
	}
	m.cells[title] = grid
}

// Values returns a copy of a sheet's grid (test inspection).
func (m *Memory) Values(title string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid := m.cells[title]
	out := make([][]string, len(grid))
	for i, r := range grid {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// SheetTitles implements Tabular.
func (m *Memory) SheetTitles(ctx context.Context) ([]string, error) {
	if err := m.fail("SheetTitles", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

// SheetID implements Tabular.
func (m *Memory) SheetID(ctx context.Context, title string) (int64, error) {
	if err := m.fail("SheetID", title); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if title == "" {
		if len(m.order) == 0 {
			return 0, fmt.Errorf("workbook has no sheets")
		}
		return m.ids[m.order[0]], nil
	}
	id, ok := m.ids[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in workbook", title)
	}
	return id, nil
}

// AddSheets implements Tabular.
func (m *Memory) AddSheets(ctx context.Context, titles []string) error {
	if err := m.fail("AddSheets", strings.Join(titles, ",")); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, title := range titles {
		if _, ok := m.ids[title]; ok {
			return fmt.Errorf("sheet %q already exists", title)
		}
	}
	for _, title := range titles {
		m.addSheet(title)
	}
	return nil
}

// Read implements Tabular.
func (m *Memory) Read(ctx context.Context, rng string) ([][]string, error) {
	if err := m.fail("Read", rng); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, err := m.resolve(rng)
	if err != nil {
		return nil, err
	}
	grid := m.cells[ref.sheet]

	var out [][]string
	for r := ref.r1; r <= ref.r2 && r < len(grid); r++ {
		src := grid[r]
		var row []string
		for c := ref.c1; c <= ref.c2 && c < len(src); c++ {
			row = append(row, src[c])
		}
		for len(row) > 0 && row[len(row)-1] == "" {
			row = row[:len(row)-1]
		}
		out = append(out, row)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Append implements Tabular, stripping a leading apostrophe per cell the way
// user-entered input does.
func (m *Memory) Append(ctx context.Context, rng string, rows [][]interface{}) error {
	if err := m.fail("Append", rng); err != nil {
		return err
	}
	return m.append(rng, rows, true)
}

// AppendRaw implements Tabular.
func (m *Memory) AppendRaw(ctx context.Context, rng string, rows [][]interface{}) error {
	if err := m.fail("AppendRaw", rng); err != nil {
		return err
	}
	return m.append(rng, rows, false)
}

func (m *Memory) append(rng string, rows [][]interface{}, userEntered bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, err := m.resolve(rng)
	if err != nil {
		return err
	}
	grid := m.cells[ref.sheet]

	last := -1
	for r, row := range grid {
		for _, cell := range row {
			if cell != "" {
				last = r
				break
			}
		}
	}
	at := last + 1
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			s := fmt.Sprint(v)
			if userEntered {
				s = strings.TrimPrefix(s, "'")
			}
			cells[i] = s
		}
		for len(grid) <= at {
			grid = append(grid, nil)
		}
		grid[at] = cells
		at++
	}
	m.cells[ref.sheet] = grid
	return nil
}

// Update implements Tabular.
func (m *Memory) Update(ctx context.Context, rng string, rows [][]interface{}) error {
	if err := m.fail("Update", rng); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, err := m.resolve(rng)
	if err != nil {
		return err
	}
	for i, row := range rows {
		for j, v := range row {
			m.set(ref.sheet, ref.r1+i, ref.c1+j, fmt.Sprint(v))
		}
	}
	return nil
}

// Clear implements Tabular.
func (m *Memory) Clear(ctx context.Context, rng string) error {
	if err := m.fail("Clear", rng); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, err := m.resolve(rng)
	if err != nil {
		return err
	}
	grid := m.cells[ref.sheet]
	for r := ref.r1; r <= ref.r2 && r < len(grid); r++ {
		for c := ref.c1; c <= ref.c2 && c < len(grid[r]); c++ {
			grid[r][c] = ""
		}
	}
	return nil
}

// DeleteTopRow implements Tabular.
func (m *Memory) DeleteTopRow(ctx context.Context, sheetTitle string) error {
	if err := m.fail("DeleteTopRow", sheetTitle); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[sheetTitle]; !ok {
		return fmt.Errorf("sheet %q not found in workbook", sheetTitle)
	}
	grid := m.cells[sheetTitle]
	if len(grid) > 0 {
		m.cells[sheetTitle] = grid[1:]
	}
	return nil
}

// InsertColumnWithHeader implements Tabular.
func (m *Memory) InsertColumnWithHeader(ctx context.Context, sheetTitle string, index int64, header string) error {
	if err := m.fail("InsertColumnWithHeader", sheetTitle); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[sheetTitle]; !ok {
		return fmt.Errorf("sheet %q not found in workbook", sheetTitle)
	}
	grid := m.cells[sheetTitle]
	idx := int(index)
	for r, row := range grid {
		if len(row) > idx {
			row = append(row, "")
			copy(row[idx+1:], row[idx:])
			row[idx] = ""
			grid[r] = row
		}
	}
	m.cells[sheetTitle] = grid
	m.set(sheetTitle, 0, idx, header)
	return nil
}

// BatchSetValues implements Tabular.
func (m *Memory) BatchSetValues(ctx context.Context, data map[string][][]interface{}) error {
	if err := m.fail("BatchSetValues", ""); err != nil {
		return err
	}
	for rng, rows := range data {
		if err := m.Update(context.Background(), rng, rows); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) set(sheet string, r, c int, val string) {
	grid := m.cells[sheet]
	for len(grid) <= r {
		grid = append(grid, nil)
	}
	for len(grid[r]) <= c {
		grid[r] = append(grid[r], "")
	}
	grid[r][c] = val
	m.cells[sheet] = grid
}

type rangeRef struct {
	sheet          string
	r1, c1, r2, c2 int
}

const unbounded = 1 << 20

// resolve parses the subset of A1 notation the adapters emit: a quoted or
// bare sheet title, optionally followed by !A1:B2 style bounds where row
// numbers may be omitted on either end.
func (m *Memory) resolve(rng string) (rangeRef, error) {
	sheetPart := rng
	cellPart := ""
	switch {
	case strings.Contains(rng, "!"):
		i := strings.LastIndex(rng, "!")
		sheetPart, cellPart = rng[:i], rng[i+1:]
	case !strings.HasPrefix(rng, "'") && looksLikeRange(rng):
		// A bare range like "A1" addresses the first sheet.
		if len(m.order) == 0 {
			return rangeRef{}, fmt.Errorf("workbook has no sheets")
		}
		sheetPart, cellPart = "'"+m.order[0]+"'", rng
	}
	sheet := sheetPart
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if _, ok := m.ids[sheet]; !ok {
		return rangeRef{}, fmt.Errorf("sheet %q not found in workbook", sheet)
	}

	ref := rangeRef{sheet: sheet, r2: unbounded, c2: unbounded}
	if cellPart == "" {
		return ref, nil
	}

	parts := strings.SplitN(cellPart, ":", 2)
	c1, r1, err := parseCell(parts[0])
	if err != nil {
		return rangeRef{}, fmt.Errorf("parsing range %q: %w", rng, err)
	}
	ref.c1, ref.r1 = c1, r1
	ref.c2, ref.r2 = c1, r1
	if r1 < 0 {
		ref.r1, ref.r2 = 0, unbounded
	}
	if len(parts) == 2 {
		c2, r2, err := parseCell(parts[1])
		if err != nil {
			return rangeRef{}, fmt.Errorf("parsing range %q: %w", rng, err)
		}
		ref.c2 = c2
		if r2 < 0 {
			ref.r2 = unbounded
		} else {
			ref.r2 = r2
		}
	}
	return ref, nil
}

// looksLikeRange reports whether every endpoint of s parses as a cell
// reference, distinguishing "A1:B2" from an unquoted sheet title.
func looksLikeRange(s string) bool {
	for _, part := range strings.Split(s, ":") {
		if _, _, err := parseCell(part); err != nil {
			return false
		}
	}
	return s != ""
}

// parseCell splits "B12" into zero-based column and row; a missing row
// number returns row -1.
func parseCell(s string) (col, row int, err error) {
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("invalid cell reference %q", s)
	}
	col = 0
	for _, ch := range s[:i] {
		col = col*26 + int(ch-'A') + 1
	}
	col--
	if i == len(s) {
		return col, -1, nil
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("invalid cell reference %q", s)
	}
	return col, n - 1, nil
}

// MemObjects is an in-memory Objects used by tests. Created workbooks are
// registered in Workbooks so tests can bind a Memory tabular to them.
type MemObjects struct {
	mu        sync.Mutex
	folders   map[string]string
	files     map[string][]byte
	nextID    int
	Workbooks map[string]*Memory

	Fail func(op, arg string) error
}

// NewMemObjects creates an empty in-memory object store.
func NewMemObjects() *MemObjects {
	return &MemObjects{
		folders:   make(map[string]string),
		files:     make(map[string][]byte),
		Workbooks: make(map[string]*Memory),
	}
}

func (o *MemObjects) fail(op, arg string) error {
	if o.Fail != nil {
		return o.Fail(op, arg)
	}
	return nil
}

// EnsureFolder implements Objects.
func (o *MemObjects) EnsureFolder(ctx context.Context, name string) (string, error) {
	if err := o.fail("EnsureFolder", name); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if id, ok := o.folders[name]; ok {
		return id, nil
	}
	o.nextID++
	id := fmt.Sprintf("folder-%d", o.nextID)
	o.folders[name] = id
	return id, nil
}

// Upload implements Objects.
func (o *MemObjects) Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error) {
	if err := o.fail("Upload", name); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := fmt.Sprintf("file-%d", o.nextID)
	o.files[id] = append([]byte(nil), content...)
	return id, nil
}

// Download implements Objects.
func (o *MemObjects) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := o.fail("Download", fileID); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	content, ok := o.files[fileID]
	if !ok {
		return nil, &googleapi.Error{Code: 404, Message: "File not found: " + fileID}
	}
	return append([]byte(nil), content...), nil
}

// Delete implements Objects.
func (o *MemObjects) Delete(ctx context.Context, fileID string) error {
	if err := o.fail("Delete", fileID); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.files[fileID]; !ok {
		return &googleapi.Error{Code: 404, Message: "File not found: " + fileID}
	}
	delete(o.files, fileID)
	return nil
}

// HasFile reports whether a file still exists (test inspection).
func (o *MemObjects) HasFile(fileID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.files[fileID]
	return ok
}

// CreateWorkbook implements Objects.
func (o *MemObjects) CreateWorkbook(ctx context.Context, folderID, title string) (string, error) {
	if err := o.fail("CreateWorkbook", title); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := fmt.Sprintf("workbook-%d", o.nextID)
	o.Workbooks[id] = NewMemory()
	return id, nil
}
