package model

import "time"

// CoverageError is the violation produced by a rule.
type CoverageError struct {
	Message string
}

// NewCoverageError builds a CoverageError.
func NewCoverageError(message string) *CoverageError {
	return &CoverageError{Message: message}
}

// ReportedError ties a rule violation to the block it was found in.
type ReportedError struct {
	Block *CodeBlock
	Error CoverageError
}

// CoverageReport is the outcome of one check run.
type CoverageReport struct {
	ReportedErrors []ReportedError
	AnalysedFiles  []string
	PatchMode      bool
	ElapsedTime    time.Duration

	// Warnings carries the non-fatal findings about the coverage input.
	Warnings []string
}

// HasViolations reports whether any rule fired.
func (r CoverageReport) HasViolations() bool {
	return len(r.ReportedErrors) > 0
}

// TypeRef names a declaring class-like type.
type TypeRef struct {
	Name string
	Kind string // class, trait, enum, interface
}

// DeclarationInfo gives rules access to the declaration a block belongs to.
type DeclarationInfo interface {
	// Annotations returns the doc-comment tags (without "@") of the method
	// and its declaring type.
	Annotations() map[string]struct{}
	DeclaringType() TypeRef
}

// InspectionContext is passed to rules together with the inspected block.
type InspectionContext struct {
	ClassName  string
	MethodName string
	FilePath   string
	PatchMode  bool

	Tree        *BlockTree
	declaration func() DeclarationInfo
}

// NewInspectionContext builds an InspectionContext whose declaration is
// resolved on first use.
func NewInspectionContext(className, methodName, filePath string, patchMode bool, tree *BlockTree, declaration func() DeclarationInfo) InspectionContext {
	return InspectionContext{
		ClassName:   className,
		MethodName:  methodName,
		FilePath:    filePath,
		PatchMode:   patchMode,
		Tree:        tree,
		declaration: declaration,
	}
}

// Declaration returns the declaration info, nil when none is available.
func (c InspectionContext) Declaration() DeclarationInfo {
	if c.declaration == nil {
		return nil
	}

	return c.declaration()
}

// HasAnnotation reports whether the declaration carries the tag.
func (c InspectionContext) HasAnnotation(tag string) bool {
	decl := c.Declaration()
	if decl == nil {
		return false
	}

	_, ok := decl.Annotations()[tag]

	return ok
}
