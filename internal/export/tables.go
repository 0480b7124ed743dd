package export

import (
	"time"

	"github.com/charlesng35/veloigp/internal/models"
)

// OperatorsTable flattens operators for export.
func OperatorsTable(operators []models.Operator) Table {
	t := Table{
		Name:    "operators",
		Columns: []string{"ID", "Nombre", "Extensión", "Estado", "Llamadas", "TMO (s)", "Satisfacción", "Eficiencia (%)"},
		Rows:    make([][]any, 0, len(operators)),
	}
	for _, op := range operators {
		t.Rows = append(t.Rows, []any{op.ID, op.Name, op.Extension, string(op.Status), op.CallsHandled, op.AvgHandleTime, op.Satisfaction, op.Efficiency})
	}
	return t
}

// CallsTable flattens calls for export.
func CallsTable(calls []models.Call) Table {
	t := Table{
		Name:    "calls",
		Columns: []string{"ID", "Operador", "Cola", "Dirección", "Número", "Inicio", "Duración (s)", "Espera (s)", "Estado"},
		Rows:    make([][]any, 0, len(calls)),
	}
	for _, c := range calls {
		t.Rows = append(t.Rows, []any{c.ID, c.OperatorID, c.Queue, c.Direction, c.Number, c.StartedAt, c.Duration, c.WaitTime, string(c.Status)})
	}
	return t
}

// QueuesTable flattens queues for export.
func QueuesTable(queues []models.Queue) Table {
	t := Table{
		Name:    "queues",
		Columns: []string{"ID", "Cola", "En espera", "Agentes activos", "Espera media (s)", "Espera máxima (s)", "Nivel de servicio (%)"},
		Rows:    make([][]any, 0, len(queues)),
	}
	for _, q := range queues {
		t.Rows = append(t.Rows, []any{q.ID, q.Name, q.Waiting, q.ActiveAgents, q.AvgWaitTime, q.LongestWait, q.ServiceLevel})
	}
	return t
}

// MetricsTable renders the KPI snapshot as a two-column table.
func MetricsTable(m models.Metrics) Table {
	return Table{
		Name:    "metrics",
		Columns: []string{"Métrica", "Valor"},
		Rows: [][]any{
			{"Llamadas totales", m.TotalCalls},
			{"Llamadas atendidas", m.AnsweredCalls},
			{"Llamadas abandonadas", m.AbandonedCalls},
			{"Espera media (s)", m.AvgWaitTime},
			{"Duración media (s)", m.AvgDuration},
			{"Nivel de servicio (%)", m.ServiceLevel},
			{"Satisfacción", m.Satisfaction},
			{"Eficiencia (%)", m.Efficiency},
		},
		Metadata: map[string]string{"generated_at": m.GeneratedAt.UTC().Format(time.RFC3339)},
	}
}
