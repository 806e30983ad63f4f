package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-fetch-images/models"
)

// ReportSpec names one report file and its format.
type ReportSpec struct {
	Format   string
	Filename string
}

type reportTarget struct {
	spec    ReportSpec
	writer  OutputWriter
	written int
}

// ReportSet copies every record to several report files. A file that fails
// to accept a record does not stop the others from receiving it.
type ReportSet struct {
	mu      sync.Mutex
	targets []*reportTarget
	records int
}

// NewReportSet opens one writer per spec. Writers opened before a failure
// are closed again.
func NewReportSet(specs ...ReportSpec) (*ReportSet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("report set needs at least one file")
	}

	set := &ReportSet{}
	for _, spec := range specs {
		writer, err := newFileWriter(spec.Format, spec.Filename)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("open %s report %s: %w", spec.Format, spec.Filename, err)
		}
		set.targets = append(set.targets, &reportTarget{spec: spec, writer: writer})
	}
	return set, nil
}

// Write hands records to every file.
func (rs *ReportSet) Write(records []*models.Record) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.records += len(records)
	var errs []error
	for _, target := range rs.targets {
		if err := target.writer.Write(records); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.spec.Filename, err))
			continue
		}
		target.written += len(records)
	}
	return errors.Join(errs...)
}

// Close closes every file and reports all failures.
func (rs *ReportSet) Close() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var errs []error
	for _, target := range rs.targets {
		if err := target.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", target.spec.Filename, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that every file has content and received every record.
func (rs *ReportSet) Validate() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var errs []error
	for _, target := range rs.targets {
		if err := target.writer.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.spec.Filename, err))
			continue
		}
		if target.written != rs.records {
			errs = append(errs, fmt.Errorf("%s: holds %d of %d records",
				target.spec.Filename, target.written, rs.records))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("validate report: %w", errors.Join(errs...))
	}
	return nil
}

// Files lists the report files in the order they were opened.
func (rs *ReportSet) Files() []string {
	files := make([]string, 0, len(rs.targets))
	for _, target := range rs.targets {
		files = append(files, target.spec.Filename)
	}
	return files
}
