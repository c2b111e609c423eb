// Package core defines the shared language of the fieldsync system.
//
// This package contains:
//   - Field descriptors (FieldDescriptor) and the Capability contract every field type satisfies
//   - Save strategies (SaveStrategy)
//   - Validation results and display directives
//   - Collaborator interfaces (Persister, Validator) and their wire shapes
//   - The coded error taxonomy (configuration, transport, validation)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
