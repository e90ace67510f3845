package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	specNames := validateSpecDocuments(result, c.Specs)
	validateViews(result, c.Views, specNames)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	// Port range validation (only if not using connection string)
	if d.ConnectionString == "" && (d.Port < 1 || d.Port > 65535) {
		result.addError("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}

	if d.ConnectionString != "" && d.ConnectionStringFile != "" {
		result.addWarning("database.dsn_file", "dsn and dsn_file are both set", "dsn takes precedence; dsn_file is ignored")
	}

	validTLSModes := map[string]bool{"": true, "false": true, "true": true, "skip-verify": true, "preferred": true}
	if !validTLSModes[d.TLSMode] {
		result.addError("database.tls_mode", fmt.Sprintf("invalid TLS mode %q", d.TLSMode),
			"valid values are: false, true, skip-verify, preferred")
	}
	if d.TLSMode == "skip-verify" {
		result.addWarning("database.tls_mode", "skip-verify mode does not verify server certificates", "use true in production")
	}

	// Connection pool validation
	if d.Pool.MaxOpen < 0 {
		result.addError("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.addError("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.addWarning("database.pool.max_idle", "max_idle is greater than max_open", "idle connections will be limited to max_open")
	}

	// Connection retry validation
	if d.ConnectionTimeout < 0 {
		result.addError("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
	if d.ConnectionRetryInterval < 0 {
		result.addError("database.connection_retry_interval", "connection_retry_interval cannot be negative", "")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.addError("database.connection_retry_interval",
			"connection_retry_interval must be greater than 0 when connection_timeout is set",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.addWarning("database.connection_retry_interval",
			"connection_retry_interval is greater than connection_timeout",
			"only one connection attempt will be made")
	}

	name, err := d.EffectiveDatabaseName()
	switch {
	case err != nil && strings.Contains(err.Error(), "mismatch"):
		result.addError("database.database", err.Error(), "either remove database.database or set it to match the DSN database")
	case err != nil:
		result.addError("database.dsn", err.Error(), "set a valid MySQL DSN in database.dsn/database.dsn_file")
	case name == "":
		result.addError("database.database", "no database name configured",
			"set database.database or include /<database> in database.dsn")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}
	if s.MaxRows < 0 {
		result.addError("server.max_rows", "max_rows cannot be negative", "")
	}
	if s.ShutdownTimeout < 0 {
		result.addError("server.shutdown_timeout", "shutdown_timeout cannot be negative", "")
	}
	if s.GraphiQLEnabled {
		result.addWarning("server.graphiql_enabled", "GraphiQL UI is enabled", "disable it outside development")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio",
			fmt.Sprintf("trace_sample_ratio %v is out of valid range (0.0-1.0)", o.TraceSampleRatio), "")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}

	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}

// graphQLNamePattern matches names usable as GraphQL field names.
var graphQLNamePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// validateSpecDocuments checks that every spec document carries a unique
// name. The document bodies are checked when they are compiled.
func validateSpecDocuments(result *ValidationResult, docs []map[string]any) map[string]bool {
	names := make(map[string]bool, len(docs))
	for i, doc := range docs {
		field := fmt.Sprintf("specs[%d].name", i)
		name, _ := doc["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			result.addError(field, "spec name cannot be empty", "give every spec document a name")
			continue
		}
		if names[name] {
			result.addError(field, fmt.Sprintf("duplicate spec name %q", name), "")
			continue
		}
		names[name] = true
	}
	return names
}

func validateViews(result *ValidationResult, views []ViewConfig, specNames map[string]bool) {
	seen := make(map[string]bool, len(views))
	for i, v := range views {
		field := fmt.Sprintf("views[%d]", i)
		switch {
		case v.Name == "":
			result.addError(field+".name", "view name cannot be empty", "")
		case !graphQLNamePattern.MatchString(v.Name):
			result.addError(field+".name", fmt.Sprintf("view name %q is not a valid GraphQL name", v.Name),
				"use letters, digits and underscores, not starting with a digit")
		case v.Name == "_views" || strings.HasPrefix(v.Name, "__"):
			result.addError(field+".name", fmt.Sprintf("view name %q is reserved", v.Name), "")
		case seen[v.Name]:
			result.addError(field+".name", fmt.Sprintf("duplicate view name %q", v.Name), "")
		default:
			seen[v.Name] = true
		}

		if strings.TrimSpace(v.SQL) == "" {
			result.addError(field+".sql", "sql cannot be empty", "")
		}
		if v.Spec == "" {
			result.addError(field+".spec", "spec cannot be empty", "name one of the documents under specs")
		} else if !specNames[v.Spec] {
			result.addError(field+".spec", fmt.Sprintf("unknown spec %q", v.Spec), "name one of the documents under specs")
		}
		if v.Timeout < 0 {
			result.addError(field+".timeout", "timeout cannot be negative", "")
		}
	}
}
