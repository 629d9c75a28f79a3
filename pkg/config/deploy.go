package config

import "time"

// DeployConfig holds runtime configuration for the deploy service.
type DeployConfig struct {
	Environment    string
	Addr           string
	Mode           string
	DockerHost     string
	Workdir        string
	StageDir       string
	RegistryPath   string
	Domain         string
	UseHTTPS       bool
	FragmentDir    string
	SitesAvailable string
	SitesEnabled   string
	NginxContainer string
	DeployToken    string
	LogLevel       string
	BuildTimeout   time.Duration
	StopTimeout    time.Duration
	StartTimeout   time.Duration
}

// LoadDeployConfig constructs a DeployConfig from environment variables.
func LoadDeployConfig() DeployConfig {
	return DeployConfig{
		Environment:    GetString("APP_ENV", "development"),
		Addr:           GetString("DEPLOY_ADDR", ":8000"),
		Mode:           GetString("DEPLOY_MODE", "direct"),
		DockerHost:     GetString("DOCKER_HOST", "unix:///var/run/docker.sock"),
		Workdir:        GetString("WORKDIR", "./containers"),
		StageDir:       GetString("STAGE_DIR", "/opt/deploy"),
		RegistryPath:   GetString("REGISTRY_PATH", "/opt/deploy/registry.json"),
		Domain:         GetString("DOMAIN", "your-domain.com"),
		UseHTTPS:       GetBool("USE_HTTPS", false),
		FragmentDir:    GetString("NGINX_FRAGMENT_DIR", "/etc/nginx/sites-available/deploy"),
		SitesAvailable: GetString("NGINX_SITES_AVAILABLE", "/etc/nginx/sites-available"),
		SitesEnabled:   GetString("NGINX_SITES_ENABLED", "/etc/nginx/sites-enabled"),
		NginxContainer: GetString("NGINX_CONTAINER", "nginx"),
		DeployToken:    GetString("DEPLOY_TOKEN", ""),
		LogLevel:       GetString("LOG_LEVEL", "info"),
		BuildTimeout:   GetSeconds("BUILD_TIMEOUT_SECONDS", 600),
		StopTimeout:    GetSeconds("STOP_TIMEOUT_SECONDS", 30),
		StartTimeout:   GetSeconds("START_TIMEOUT_SECONDS", 30),
	}
}
