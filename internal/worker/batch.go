package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/pipeline"
)

// Processor runs one message through the decision pipeline
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*model.Report, error)
}

type messageJob struct {
	index     int
	input     pipeline.Input
	processor Processor
}

func (j *messageJob) Execute(ctx context.Context) Result {
	report, err := j.processor.Process(ctx, j.input)
	return &MessageResult{
		Index:  j.index,
		Input:  j.input,
		Report: report,
		Error:  err,
	}
}

// MessageResult is the outcome for one batch input
type MessageResult struct {
	Index  int
	Input  pipeline.Input
	Report *model.Report
	Error  error
}

// GetError returns the processing error, if any
func (r *MessageResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many independent messages concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessInputs processes every input and returns results in input order.
// One failing message does not stop the others.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []pipeline.Input) []*MessageResult {
	results := make([]*MessageResult, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, in := range inputs {
		if !pool.Submit(&messageJob{index: i, input: in, processor: b.processor}) {
			break
		}
	}

	for _, r := range pool.Wait() {
		mr := r.(*MessageResult)
		results[mr.Index] = mr
	}

	// Inputs never submitted because ctx ended
	for i := range results {
		if results[i] == nil {
			results[i] = &MessageResult{Index: i, Input: inputs[i], Error: ctx.Err()}
		}
	}

	return results
}

// ProcessFile reads inputs from a file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*MessageResult, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

// ReadInputsFromFile reads one input per line. A line starting with '{' is
// a JSON object {"message", "detections", "topic_hints"}; any other line is
// the message text. Blank lines and lines starting with '#' are skipped.
func ReadInputsFromFile(filePath string) ([]pipeline.Input, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []pipeline.Input

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "{") {
			var in pipeline.Input
			if err := json.Unmarshal([]byte(line), &in); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			inputs = append(inputs, in)
			continue
		}

		inputs = append(inputs, pipeline.Input{Message: line})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
