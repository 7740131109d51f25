package config_test

import (
	"approvalflow/account"
	"approvalflow/bizerror"
	"approvalflow/config"
	"approvalflow/domain/approval"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

const definitionsYAML = `
templates:
  - code: quote_approval
    entityType: quote
    name: Quote approval
    rules:
      - name: thin_margin
        conditions:
          - field: margin
            op: lt
            value: 10
        chain:
          - name: manager
            role: SALES_MANAGER
          - name: director
            role: DIRECTOR
            mode: ALL
    defaultChain:
      - name: owner
        assignees: [21, 22]
notifications:
  approval_task_assigned: "{{.title}} waits for your decision"
users:
  - name: ann
    email: ann@example.com
    roles: [SALES_MANAGER]
`

func TestParseDefinitions(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should parse templates and notifications", func(t *testing.T) {
		defs, err := config.ParseDefinitions([]byte(definitionsYAML))
		Expect(err).To(BeNil())
		Expect(len(defs.Templates)).To(Equal(1))

		tpl := defs.Templates[0]
		Expect(tpl.Code).To(Equal("quote_approval"))
		Expect(tpl.EntityType).To(Equal("quote"))
		Expect(tpl.Rules[0].Conditions[0]).To(Equal(approval.Condition{Field: "margin", Op: "lt", Value: 10}))
		Expect(tpl.Rules[0].Chain[1]).To(Equal(approval.Node{Name: "director", Role: "DIRECTOR", Mode: approval.ModeAll}))
		Expect(tpl.DefaultChain[0].Assignees).To(Equal([]types.ID{21, 22}))

		registry := approval.NewTemplates()
		Expect(defs.RegisterTemplates(registry)).To(BeNil())
		Expect(registry.Codes()).To(Equal([]string{"quote_approval"}))

		templates, err := defs.NotificationTemplates()
		Expect(err).To(BeNil())
		body, err := templates.Render("approval_task_assigned", map[string]interface{}{"title": "Q-1"})
		Expect(err).To(BeNil())
		Expect(body).To(Equal("Q-1 waits for your decision"))

		Expect(defs.Users).To(Equal([]account.UserCreation{{Name: "ann", Email: "ann@example.com", Roles: []string{"SALES_MANAGER"}}}))
	})

	t.Run("should reject broken definitions", func(t *testing.T) {
		_, err := config.ParseDefinitions([]byte("  "))
		assert.True(t, errors.Is(err, bizerror.ErrConfiguration))

		_, err = config.ParseDefinitions([]byte("templates: [ {code: "))
		assert.True(t, errors.Is(err, bizerror.ErrConfiguration))

		_, err = config.ParseDefinitions([]byte("templates:\n  - entityType: quote\n    defaultChain: [{name: a, role: R}]\n"))
		assert.True(t, errors.Is(err, bizerror.ErrConfiguration))

		_, err = config.ParseDefinitions([]byte("users:\n  - email: nobody@example.com\n"))
		assert.True(t, errors.Is(err, bizerror.ErrConfiguration))

		defs, err := config.ParseDefinitions([]byte("templates:\n  - code: a\n    entityType: quote\n    defaultChain: []\n"))
		assert.Nil(t, err)
		assert.True(t, errors.Is(defs.RegisterTemplates(approval.NewTemplates()), bizerror.ErrConfiguration))
	})

	t.Run("should load definitions file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "definitions.yaml")
		Expect(os.WriteFile(path, []byte(definitionsYAML), 0600)).To(BeNil())
		defs, err := config.LoadDefinitionsFile(path)
		Expect(err).To(BeNil())
		Expect(len(defs.Templates)).To(Equal(1))

		_, err = config.LoadDefinitionsFile(filepath.Join(t.TempDir(), "missing.yaml"))
		Expect(err).ToNot(BeNil())
	})
}

func TestSettingsFromEnv(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should apply defaults and overrides", func(t *testing.T) {
		defer os.Unsetenv("NOTIFY_RATE_PER_SECOND")
		defer os.Unsetenv("ROLE_CACHE_EXPIRATION")
		defer os.Unsetenv("NOTIFY_WEBHOOK_URL")

		s, err := config.SettingsFromEnv()
		Expect(err).To(BeNil())
		Expect(s.NotifyRatePerSecond).To(Equal(float64(config.DefaultNotifyRatePerSecond)))
		Expect(s.RoleCacheExpiration).To(Equal(config.DefaultRoleCacheExpiration))

		os.Setenv("NOTIFY_RATE_PER_SECOND", "2.5")
		os.Setenv("ROLE_CACHE_EXPIRATION", "30s")
		os.Setenv("NOTIFY_WEBHOOK_URL", "http://hooks.local/notify")
		s, err = config.SettingsFromEnv()
		Expect(err).To(BeNil())
		Expect(s.NotifyRatePerSecond).To(Equal(2.5))
		Expect(s.RoleCacheExpiration).To(Equal(30 * time.Second))
		Expect(s.NotifyWebhookURL).To(Equal("http://hooks.local/notify"))

		os.Setenv("NOTIFY_RATE_PER_SECOND", "fast")
		_, err = config.SettingsFromEnv()
		Expect(errors.Is(err, bizerror.ErrConfiguration)).To(BeTrue())
	})
}

func TestLoadDefinitions(t *testing.T) {
	RegisterTestingT(t)

	defs, err := config.LoadDefinitions("")
	Expect(err).To(BeNil())
	registry := approval.NewTemplates()
	Expect(defs.RegisterTemplates(registry)).To(BeNil())

	tpl, ok := registry.Get("quote_approval")
	Expect(ok).To(BeTrue())
	rule, chain, err := tpl.Route(approval.Snapshot{"margin": 10.0, "total_amount": 500.0})
	Expect(err).To(BeNil())
	Expect(rule).To(Equal("thin_margin"))
	Expect(len(chain)).To(Equal(2))

	rule, _, err = tpl.Route(approval.Snapshot{"margin": 30.0, "total_amount": 500.0})
	Expect(err).To(BeNil())
	Expect(rule).To(Equal(approval.DefaultRuleName))

	templates, err := defs.NotificationTemplates()
	Expect(err).To(BeNil())
	Expect(templates.Has("approval_rejected")).To(BeTrue())
}
