package columndict

// TableIdentifier identifies a table within a store. It is comparable and
// safe to use as a map key.
type TableIdentifier struct {
	Database string
	Table    string
}

func (t TableIdentifier) String() string { return t.Database + "." + t.Table }

// ColumnIdentifier identifies a single column of a table. It is comparable
// and safe to use as a map key.
type ColumnIdentifier struct {
	ID string
}

func (c ColumnIdentifier) String() string { return c.ID }
