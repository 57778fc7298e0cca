package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dvloznov/ledger-importer/internal/domain"
	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/objectstore"
	"github.com/dvloznov/ledger-importer/internal/sheet"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Request     Request
	RunID       string
	SourceBytes []byte
	Table       *domain.Table
	Result      *ledger.Result
	OutputBytes []byte
}

// Step 1: FetchSourceStep reads the source workbook bytes.
type FetchSourceStep struct {
	Store objectstore.Store
}

func (s *FetchSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Store.Fetch(ctx, state.Request.SourceURI)
	if err != nil {
		return &ledger.IOError{Op: "read", URI: state.Request.SourceURI, Cause: err}
	}
	state.SourceBytes = data
	return nil
}

// Step 2: DecodeWorkbookStep decodes the source bytes into a table.
type DecodeWorkbookStep struct{}

func (s *DecodeWorkbookStep) Execute(ctx context.Context, state *PipelineState) error {
	table, err := sheet.Read(bytes.NewReader(state.SourceBytes), state.Request.Sheet)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", state.Request.SourceURI, err)
	}
	state.Table = table
	return nil
}

// Step 3: TransformStep runs the ledger engine over the table.
type TransformStep struct {
	Engine *ledger.Engine
}

func (s *TransformStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Engine.Transform(ctx, state.Table)
	if err != nil {
		return err
	}
	state.Result = res
	return nil
}

// Step 4: EncodeOutputStep encodes the selected rows as a workbook in memory.
type EncodeOutputStep struct{}

func (s *EncodeOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	res := state.Result
	buf := &bytes.Buffer{}
	if err := sheet.Write(buf, res.SheetTitle, res.Header, res.Output); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	state.OutputBytes = buf.Bytes()
	return nil
}

// Step 5: WriteOutputStep stores the encoded workbook in a single write.
type WriteOutputStep struct {
	Store objectstore.Store
}

func (s *WriteOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Store.Put(ctx, state.Request.OutputURI, state.OutputBytes); err != nil {
		return &ledger.IOError{Op: "write", URI: state.Request.OutputURI, Cause: err}
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// NewImportPipeline creates the standard read, transform, write pipeline.
func NewImportPipeline(store objectstore.Store, engine *ledger.Engine) *Pipeline {
	return NewPipeline(
		&FetchSourceStep{Store: store},
		&DecodeWorkbookStep{},
		&TransformStep{Engine: engine},
		&EncodeOutputStep{},
		&WriteOutputStep{Store: store},
	)
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
