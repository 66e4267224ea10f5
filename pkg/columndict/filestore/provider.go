package filestore

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/micadb/mica/pkg/columndict"
)

const (
	dictionaryExt = ".dict"
	sortIndexExt  = ".sortindex"
)

var (
	_ columndict.ReaderProvider  = (*Provider)(nil)
	_ columndict.ValueReader     = (*DictionaryReader)(nil)
	_ columndict.SortIndexReader = (*SortIndexReader)(nil)
)

// Provider resolves tables and columns to readers over dictionary files
// stored under a root directory, laid out as
// <root>/<database>/<table>/<columnID>.dict|.sortindex. It implements
// [columndict.ReaderProvider].
type Provider struct {
	root string
}

// NewProvider creates a Provider over the given store root.
func NewProvider(root string) *Provider {
	return &Provider{root: root}
}

// DictionaryPath returns the path of a column's dictionary file.
func (p *Provider) DictionaryPath(table columndict.TableIdentifier, column columndict.ColumnIdentifier) string {
	return filepath.Join(p.root, table.Database, table.Table, column.ID+dictionaryExt)
}

// SortIndexPath returns the path of a column's sort-index file.
func (p *Provider) SortIndexPath(table columndict.TableIdentifier, column columndict.ColumnIdentifier) string {
	return filepath.Join(p.root, table.Database, table.Table, column.ID+sortIndexExt)
}

// DictionaryReader opens a value reader for the column's dictionary file.
func (p *Provider) DictionaryReader(table columndict.TableIdentifier, column columndict.ColumnIdentifier) (columndict.ValueReader, error) {
	path := p.DictionaryPath(table, column)
	r, err := OpenDictionary(path)
	if os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrapf(columndict.ErrSourceUnavailable, "no dictionary file for column %s of table %s at %s", column, table, path)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// SortIndexReader opens a sort-index reader for the column.
func (p *Provider) SortIndexReader(table columndict.TableIdentifier, column columndict.ColumnIdentifier) (columndict.SortIndexReader, error) {
	path := p.SortIndexPath(table, column)
	r, err := OpenSortIndex(path)
	if os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrapf(columndict.ErrSourceUnavailable, "no sort index file for column %s of table %s at %s", column, table, path)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
