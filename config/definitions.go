package config

import (
	"approvalflow/account"
	"approvalflow/bizerror"
	"approvalflow/domain/approval"
	"approvalflow/notify"
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Definitions is the declarative part of the configuration: approval templates, notification bodies and seeded users.
type Definitions struct {
	Templates     []approval.Template    `yaml:"templates" validate:"dive"`
	Notifications map[string]string      `yaml:"notifications"`
	Users         []account.UserCreation `yaml:"users" validate:"dive"`
}

func ParseDefinitions(data []byte) (*Definitions, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, bizerror.NewConfigurationError("definitions payload is empty")
	}
	defs := Definitions{}
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, bizerror.NewConfigurationError("decode definitions: %v", err)
	}
	if err := validate.Struct(&defs); err != nil {
		return nil, bizerror.NewConfigurationError("invalid definitions: %v", err)
	}
	return &defs, nil
}

func LoadDefinitionsFile(path string) (*Definitions, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions %s: %w", path, err)
	}
	return ParseDefinitions(content)
}

// RegisterTemplates stops at the first template the registry refuses.
func (d *Definitions) RegisterTemplates(registry *approval.Templates) error {
	for _, t := range d.Templates {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (d *Definitions) NotificationTemplates() (*notify.Templates, error) {
	return notify.NewTemplates(d.Notifications)
}
