package models

// AppState holds the presentation state
type AppState struct {
	Width          int
	Height         int
	LeftPanelWidth int
	FocusedPanel   PanelType
	ViewMode       ViewMode
}

// PanelType identifies which panel is focused
type PanelType int

const (
	LeftPanel PanelType = iota
	RightPanel
)

// ViewMode identifies the current input mode
type ViewMode int

const (
	NormalMode ViewMode = iota
	HelpMode
	PromptMode
	SessionMode
	HistoryMode
	ConfirmMode
	QueryEditMode
)

// NewAppState creates a new AppState with defaults
func NewAppState() AppState {
	return AppState{
		Width:          80,
		Height:         24,
		LeftPanelWidth: 25,
		FocusedPanel:   LeftPanel,
		ViewMode:       NormalMode,
	}
}

// ColumnDetail describes a table column for the table-info view
type ColumnDetail struct {
	Name         string
	DataType     string
	IsNullable   bool
	DefaultValue string
	IsPrimaryKey bool
}

// ForeignKey is a schema-declared reference from a column to another table
type ForeignKey struct {
	Column       string
	TargetTable  string
	TargetColumn string
}
