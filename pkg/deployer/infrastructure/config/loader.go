package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tss-calculator/deployer/pkg/deployer/application/model"
)

type Server struct {
	Target       string   `yaml:"target"`
	Branch       string   `yaml:"branch"`
	DeployDir    string   `yaml:"deploy_dir"`
	CloneURL     string   `yaml:"clone_url"`
	CreateDir    bool     `yaml:"create_dir"`
	ForceRebuild bool     `yaml:"force_rebuild"`
	Sudo         bool     `yaml:"sudo"`
	TasksOnly    bool     `yaml:"tasks_only"`
	Tasks        []string `yaml:"additional_terminal_tasks"`

	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	KeyType string `yaml:"key_type"`
	KeyPath string `yaml:"key_path"`
}

type Email struct {
	SMTPServer  string   `yaml:"smtp_server"`
	SMTPPort    int      `yaml:"smtp_port"`
	UseTLS      bool     `yaml:"use_tls"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	SenderEmail string   `yaml:"sender_email"`
	Recipients  []string `yaml:"recipients"`
}

type Notifications struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	Email           Email  `yaml:"email"`
}

type File struct {
	ListenAddress     string                       `yaml:"listen_address"`
	WebhookSecret     string                       `yaml:"github_webhook_secret"`
	DeployAPIKey      string                       `yaml:"deploy_api_key"`
	DiagnosticsAPIKey string                       `yaml:"diagnostics_api_key"`
	AbortOnError      bool                         `yaml:"abort_on_error"`
	RepoDeployMap     map[string]map[string]Server `yaml:"repo_deploy_map"`
	Notifications     Notifications                `yaml:"notifications"`
}

// Config is the validated application configuration.
type Config struct {
	ListenAddress     string
	WebhookSecret     string
	DeployAPIKey      string
	DiagnosticsAPIKey string
	AbortOnError      bool
	Deployments       map[model.RepositoryID][]model.Target
	Notifications     Notifications
}

// Load reads the YAML configuration, validates the server topology and maps
// it to application model targets, ordered by server key. Keys are compared
// lexicographically, as the key scheme is server1, server2, ...
func Load(filePath string) (Config, error) {
	configBody, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config file %v", filePath)
	}
	var file File
	err = yaml.Unmarshal(configBody, &file)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to unmarshal config file %v", filePath)
	}
	err = assertServers(file)
	if err != nil {
		return Config{}, err
	}
	return mapFileToConfig(file), nil
}

func assertServers(file File) error {
	for repository, servers := range file.RepoDeployMap {
		for serverKey, server := range servers {
			if !strings.HasPrefix(serverKey, "server") {
				continue
			}
			if server.DeployDir == "" {
				return fmt.Errorf("deploy_dir is required for %v of %v", serverKey, repository)
			}
			switch model.ExecutionMode(server.Target) {
			case model.ModeRemote:
				if server.Host == "" || server.User == "" || server.KeyPath == "" {
					return fmt.Errorf("host, user and key_path are required for remote %v of %v", serverKey, repository)
				}
			case model.ModeLocal:
				if server.Host != "" {
					return fmt.Errorf("host is set for local %v of %v", serverKey, repository)
				}
			}
		}
	}
	return nil
}

func mapFileToConfig(file File) Config {
	deployments := make(map[model.RepositoryID][]model.Target, len(file.RepoDeployMap))
	for repository, servers := range file.RepoDeployMap {
		keys := make([]string, 0, len(servers))
		for serverKey := range servers {
			// only serverN keys describe deployment destinations
			if strings.HasPrefix(serverKey, "server") {
				keys = append(keys, serverKey)
			}
		}
		sort.Strings(keys)
		targets := make([]model.Target, 0, len(keys))
		for _, serverKey := range keys {
			targets = append(targets, mapServerToTarget(serverKey, servers[serverKey]))
		}
		deployments[repository] = targets
	}

	notifications := file.Notifications
	if password := os.Getenv("EMAIL_PASSWORD"); password != "" {
		notifications.Email.Password = password
	}
	if username := os.Getenv("EMAIL_USERNAME"); username != "" {
		notifications.Email.Username = username
	}
	if notifications.Email.SMTPPort == 0 {
		notifications.Email.SMTPPort = 587
	}

	listenAddress := file.ListenAddress
	if listenAddress == "" {
		listenAddress = ":8000"
	}

	return Config{
		ListenAddress:     listenAddress,
		WebhookSecret:     file.WebhookSecret,
		DeployAPIKey:      file.DeployAPIKey,
		DiagnosticsAPIKey: file.DiagnosticsAPIKey,
		AbortOnError:      file.AbortOnError,
		Deployments:       deployments,
		Notifications:     notifications,
	}
}

func mapServerToTarget(serverKey string, server Server) model.Target {
	branch := server.Branch
	if branch == "" {
		branch = "main"
	}
	target := model.Target{
		Key:          serverKey,
		Mode:         model.ExecutionMode(server.Target),
		Branch:       branch,
		DeployDir:    server.DeployDir,
		CloneURL:     server.CloneURL,
		CreateDir:    server.CreateDir,
		ForceRebuild: server.ForceRebuild,
		Sudo:         server.Sudo,
		TasksOnly:    server.TasksOnly,
		Tasks:        server.Tasks,
	}
	if target.Mode == model.ModeRemote {
		port := server.Port
		if port == 0 {
			port = 22
		}
		keyType := server.KeyType
		if keyType == "" {
			keyType = "pem"
		}
		target.Remote = &model.RemoteConfig{
			Host:    server.Host,
			Port:    port,
			User:    server.User,
			KeyType: keyType,
			KeyPath: server.KeyPath,
		}
	}
	return target
}
