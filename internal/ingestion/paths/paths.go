// Package paths is the sole authority for computing on-disk locations
// for customer data. Centralizing this prevents a persistent store from
// ever silently resolving into an OS temporary directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// DeploymentType selects the base prefix used to resolve customer paths.
type DeploymentType string

const (
	Managed    DeploymentType = "managed"
	SelfHosted DeploymentType = "self_hosted"
	Development DeploymentType = "development"
)

// Kind is a logical path purpose requested by a caller.
type Kind string

const (
	KindTabularRoot     Kind = "tabular_root"
	KindVectorRoot      Kind = "vector_root"
	KindGraphRoot       Kind = "graph_root"
	KindLoraRoot        Kind = "lora_root"
	KindUploadStaging   Kind = "upload_staging"
	KindHandlerStore    Kind = "handler_store"
	KindEphemeralScratch Kind = "ephemeral_scratch"
)

type basePaths struct {
	lakehouse string
	loras     string
	uploads   string
}

// Resolver resolves logical path kinds to absolute, pre-created paths.
type Resolver struct {
	deployment DeploymentType
	bases      map[DeploymentType]basePaths
}

// New builds a Resolver. deployment may be empty to request auto-detection
// at resolve time (mirroring DEPLOYMENT_TYPE's optional-env behavior).
func New(deployment DeploymentType) *Resolver {
	return &Resolver{
		deployment: deployment,
		bases: map[DeploymentType]basePaths{
			Managed: {
				lakehouse: "/data/lakehouse",
				loras:     "/data/loras",
				uploads:   "/data/uploads",
			},
			SelfHosted: {
				lakehouse: getenv("LAKEHOUSE_BASE", "/var/lib/0711/lakehouse"),
				loras:     getenv("LORA_BASE", "/var/lib/0711/loras"),
				uploads:   getenv("UPLOAD_BASE", "/var/lib/0711/uploads"),
			},
			Development: {
				lakehouse: getenv("LAKEHOUSE_BASE", "./data/lakehouse"),
				loras:     getenv("LORA_BASE", "./data/loras"),
				uploads:   getenv("UPLOAD_BASE", "./data/uploads"),
			},
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// DetectDeploymentType auto-detects a deployment type from the
// environment when none was configured explicitly.
func DetectDeploymentType() DeploymentType {
	if v := DeploymentType(os.Getenv("DEPLOYMENT_TYPE")); v == Managed || v == SelfHosted || v == Development {
		return v
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return Managed
	}
	if _, err := os.Stat("/var/lib/0711"); err == nil {
		return SelfHosted
	}
	return Development
}

func (r *Resolver) effectiveDeployment() DeploymentType {
	if r.deployment != "" {
		return r.deployment
	}
	return DetectDeploymentType()
}

// Resolve returns the absolute path for a customer id and logical kind.
// Persistent kinds are pre-created on access. Only KindEphemeralScratch
// may resolve into an OS temp directory.
func (r *Resolver) Resolve(customerID string, kind Kind) (string, error) {
	dep := r.effectiveDeployment()
	base, ok := r.bases[dep]
	if !ok {
		return "", fmt.Errorf("paths: unknown deployment type %q", dep)
	}

	var p string
	switch kind {
	case KindEphemeralScratch:
		dir, err := os.MkdirTemp("", fmt.Sprintf("ingest_%s_", sanitize(customerID)))
		if err != nil {
			return "", fmt.Errorf("paths: create scratch dir: %w", err)
		}
		return dir, nil
	case KindTabularRoot, KindVectorRoot, KindGraphRoot:
		p = perCustomer(base.lakehouse, dep, customerID, string(kind))
	case KindLoraRoot:
		p = perCustomer(base.loras, dep, customerID, "")
	case KindUploadStaging:
		p = perCustomer(base.uploads, dep, customerID, "")
	case KindHandlerStore:
		p = perCustomer(base.lakehouse, dep, customerID, "generated_handlers")
	default:
		return "", fmt.Errorf("paths: unknown kind %q", kind)
	}

	if err := assertSafe(p); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("paths: create %s: %w", p, err)
	}
	return p, nil
}

// perCustomer mirrors original_source/core/paths.py: managed deployments
// share a single container-internal prefix; self-hosted/development get a
// per-customer subdirectory, optionally with a sub-kind suffix.
func perCustomer(base string, dep DeploymentType, customerID, sub string) string {
	if dep == Managed {
		if sub != "" && sub != string(KindTabularRoot) {
			return filepath.Join(base, sub)
		}
		return base
	}
	if sub == "" || sub == string(KindTabularRoot) {
		return filepath.Join(base, customerID)
	}
	return filepath.Join(base, customerID, sub)
}

func sanitize(customerID string) string {
	out := make([]rune, 0, len(customerID))
	for _, r := range customerID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "customer"
	}
	return string(out)
}

// assertSafe rejects any persistent path that resolves into an OS
// temporary directory. This is a programming-error assertion, not a
// recoverable condition: callers that hit it have a configuration bug.
func assertSafe(p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("paths: resolve absolute path: %w", err)
	}
	tmp := os.TempDir()
	if abs == tmp || (len(abs) > len(tmp) && abs[:len(tmp)+1] == tmp+string(filepath.Separator)) {
		panic(fmt.Sprintf("paths: unsafe persistent path resolved into temp dir: %s", abs))
	}
	return nil
}

// AllPaths is a diagnostic convenience bundling every resolved path kind
// for one customer, grounded on CustomerPaths.get_all_customer_paths.
type AllPaths struct {
	Deployment DeploymentType
	CustomerID string
	Tabular    string
	Vector     string
	Graph      string
	Loras      string
	Uploads    string
}

// ResolveAll resolves every persistent kind for a customer in one call.
func (r *Resolver) ResolveAll(customerID string) (AllPaths, error) {
	var out AllPaths
	out.Deployment = r.effectiveDeployment()
	out.CustomerID = customerID
	var err error
	if out.Tabular, err = r.Resolve(customerID, KindTabularRoot); err != nil {
		return out, err
	}
	if out.Vector, err = r.Resolve(customerID, KindVectorRoot); err != nil {
		return out, err
	}
	if out.Graph, err = r.Resolve(customerID, KindGraphRoot); err != nil {
		return out, err
	}
	if out.Loras, err = r.Resolve(customerID, KindLoraRoot); err != nil {
		return out, err
	}
	if out.Uploads, err = r.Resolve(customerID, KindUploadStaging); err != nil {
		return out, err
	}
	return out, nil
}
