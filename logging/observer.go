package logging

import "ha-futures-bot/models"

// FieldObserver writes decision events to a logger as key=value lines.
// Condition traces go to DEBUG, lifecycle events to INFO.
type FieldObserver struct {
	Logger LoggerInterface
}

func (o FieldObserver) OnCondition(ev models.ConditionEvent) {
	if o.Logger == nil {
		return
	}
	mark := "✗"
	if ev.Result {
		mark = "✓"
	}
	o.Logger.Debug("[%s/%s] %s %s %s(%.6g) %s %s(%.6g)", ev.Timeframe, ev.Rule, mark, ev.Name,
		ev.Left, ev.LeftValue, ev.Op, ev.Right, ev.RightValue)
}

func (o FieldObserver) OnEvent(ev models.Event) {
	if o.Logger == nil {
		return
	}
	if len(ev.Fields) == 0 {
		o.Logger.Info("[%s] %s", ev.Kind, ev.Message)
		return
	}
	o.Logger.Info("[%s] %s %s", ev.Kind, ev.Message, FormatFields(ev.Fields))
}
