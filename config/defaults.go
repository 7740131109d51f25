package config

// DefaultDefinitions applies when APPROVALFLOW_DEFINITIONS is not set.
const DefaultDefinitions = `
templates:
  - code: quote_approval
    entityType: quote
    name: Quote approval
    rules:
      - name: thin_margin
        conditions:
          - field: margin
            op: lt
            value: 15
        chain:
          - name: sales_manager
            role: SALES_MANAGER
          - name: finance
            role: FINANCE
            mode: ALL
      - name: large_amount
        conditions:
          - field: total_amount
            op: gte
            value: 100000
        chain:
          - name: sales_manager
            role: SALES_MANAGER
          - name: director
            role: SALES_DIRECTOR
    defaultChain:
      - name: sales_manager
        role: SALES_MANAGER
notifications:
  approval_task_assigned: "{{.title}} is waiting for your approval ({{.urgency}})"
  approval_approved: "{{.title}} was approved by {{.actor}}"
  approval_rejected: "{{.title}} was rejected by {{.actor}}: {{.comment}}"
  approval_withdrawn: "{{.title}} was withdrawn by {{.actor}}"
  approval_delegated: "{{.actor}} delegated the approval of {{.title}} to you: {{.comment}}"
  quote_submitted: "{{.summary}} was submitted for approval by {{.actor}}"
  quote_approved: "{{.summary}} was approved by {{.actor}}"
  quote_rejected: "{{.summary}} was rejected by {{.actor}}: {{.comment}}"
`

// LoadDefinitions reads the definitions file at path, or the built-in definitions when path is empty.
func LoadDefinitions(path string) (*Definitions, error) {
	if path == "" {
		return ParseDefinitions([]byte(DefaultDefinitions))
	}
	return LoadDefinitionsFile(path)
}
