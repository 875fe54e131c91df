package configs

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Load reads one daemon's YAML config file.
func Load[T any](filepath string) (*T, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, xerrors.WrapWithNote("unable to read the config file", err)
	}
	config := new(T)
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, xerrors.WrapWithNote("unable to parse the config file", err)
	}
	return config, nil
}

// Server is the HTTP surface shared by every daemon.
type Server struct {
	Port     int32  `yaml:"port"`
	LogLevel string `yaml:"loglevel"`
}

// Database locates the shared Postgres and this deployment's tables.
type Database struct {
	URL         string `yaml:"url"`
	TablePrefix string `yaml:"tablePrefix"`
	TableSuffix string `yaml:"tableSuffix"`
}

func (d Database) Names() schema.Names {
	return schema.Names{Prefix: d.TablePrefix, Suffix: d.TableSuffix}
}

// Bus names the internal event bus.
type Bus struct {
	Name string `yaml:"name"`
}

// Auth configures bearer-token decoding.
type Auth struct {
	// VerifyTokens requires a valid signature from the identity
	// provider's key set. Off only in development.
	VerifyTokens bool `yaml:"verifyTokens"`

	// PublicKeyFile is the identity provider's RSA public key, PEM
	// encoded. Required when VerifyTokens is on.
	PublicKeyFile string `yaml:"publicKeyFile"`

	// APIKeyGroups maps service api keys to the groups they act with.
	APIKeyGroups map[string][]string `yaml:"apikeyGroups"`

	// EnforceProjectAccess restricts operators to the projects their
	// token names.
	EnforceProjectAccess bool `yaml:"enforceProjectAccess"`
}

// Catalog locates the asset-management gateway.
type Catalog struct {
	URL            string   `yaml:"url"`
	ScriptName     string   `yaml:"scriptName"`
	APIKey         string   `yaml:"apikey"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	AvoidTags      []string `yaml:"avoidTags"`
	RestrictTo     []int    `yaml:"restrictTo"`
}

func (c Catalog) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Remote locates a sibling microservice.
type Remote struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

func (r Remote) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ConfigsdConfig shapes the config service daemon.
type ConfigsdConfig struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`

	// LevelService answers level existence and visibility lookups.
	LevelService Remote `yaml:"levelService"`

	// BodyDir stores the JSON bodies of configs beside their metadata.
	BodyDir string `yaml:"bodyDir"`
}

// DepsdConfig shapes the dependency service daemon.
type DepsdConfig struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`
	Bus      Bus      `yaml:"bus"`

	// LevelService answers level existence and visibility lookups.
	LevelService Remote `yaml:"levelService"`

	// PackagesDir is the root of the package repository the index
	// scans.
	PackagesDir string `yaml:"packagesDir"`

	// SkipDescendantUpdates turns off revalidation fan-out, for dev.
	SkipDescendantUpdates bool `yaml:"skipDescendantUpdates"`
}

// LevelsdConfig shapes the level service daemon.
type LevelsdConfig struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`
	Catalog  Catalog  `yaml:"catalog"`

	// TreeDir holds the tree snapshot files.
	TreeDir string `yaml:"treeDir"`

	// CacheForSeconds bounds how long a tree stays in service before
	// the store is checked for a younger snapshot.
	CacheForSeconds int `yaml:"cacheForSeconds"`
}

func (c LevelsdConfig) CacheFor() time.Duration {
	return time.Duration(c.CacheForSeconds) * time.Second
}

// LevelsyncConfig shapes the background tree refresher.
type LevelsyncConfig struct {
	Database Database `yaml:"database"`
	Catalog  Catalog  `yaml:"catalog"`

	TreeDir         string `yaml:"treeDir"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
	LivenessFile    string `yaml:"livenessFile"`
}

func (c LevelsyncConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// SourcingdConfig shapes the event sourcing daemon.
type SourcingdConfig struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
	Bus    Bus    `yaml:"bus"`

	// SignatureToken is the webhook's HMAC secret.
	SignatureToken string `yaml:"signatureToken"`

	// RejectUnverified drops events that fail signature verification.
	RejectUnverified bool `yaml:"rejectUnverified"`

	DefaultSite string `yaml:"defaultSite"`
}

// SchedulerConfig is the scheduling behaviour shared by schedulerd and
// schedexec.
type SchedulerConfig struct {
	EventToolsConfigName string `yaml:"eventToolsConfigName"`
	JobconfBaseDir       string `yaml:"jobconfBaseDir"`
	MaxDueJobs           int    `yaml:"maxDueJobs"`
	ScheduleAfterSeconds int    `yaml:"scheduleAfterSeconds"`
}

func (c SchedulerConfig) ScheduleAfter() time.Duration {
	return time.Duration(c.ScheduleAfterSeconds) * time.Second
}

// Kubernetes shapes the tool jobs schedexec spawns.
type Kubernetes struct {
	Namespace    string   `yaml:"namespace"`
	AppName      string   `yaml:"appName"`
	Image        string   `yaml:"image"`
	Command      []string `yaml:"command"`
	BackoffLimit int32    `yaml:"backoffLimit"`
	TTLHours     int32    `yaml:"ttlHours"`
}

func (k Kubernetes) TTLSeconds() int32 {
	return k.TTLHours * 3600
}

// SchedulerdConfig shapes the scheduler HTTP daemon.
type SchedulerdConfig struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`
	Bus      Bus      `yaml:"bus"`
	Catalog  Catalog  `yaml:"catalog"`

	ConfigService Remote `yaml:"configService"`
	DepsService   Remote `yaml:"depsService"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// SchedexecConfig shapes the due-request dispatcher.
type SchedexecConfig struct {
	Database Database `yaml:"database"`
	Bus      Bus      `yaml:"bus"`
	Catalog  Catalog  `yaml:"catalog"`

	ConfigService Remote `yaml:"configService"`
	DepsService   Remote `yaml:"depsService"`

	Scheduler  SchedulerConfig `yaml:"scheduler"`
	Kubernetes Kubernetes      `yaml:"kubernetes"`

	PeriodSeconds int    `yaml:"periodSeconds"`
	LivenessFile  string `yaml:"livenessFile"`
}

func (c SchedexecConfig) Period() time.Duration {
	if c.PeriodSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.PeriodSeconds) * time.Second
}

// ValidatordConfig shapes the validation worker daemon.
type ValidatordConfig struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
	Bus    Bus    `yaml:"bus"`

	// ResolverCommand is the package resolution CLI.
	ResolverCommand []string `yaml:"resolverCommand"`

	// RxtDir stores serialized resolve contexts.
	RxtDir string `yaml:"rxtDir"`
}
