package approval

var (
	DecideTask      = decideTask
	PersistInstance = persistInstance
	ActiveKey       = activeKey
)
