package rabbitmq

// MaintenanceExchange обменник служебных сообщений фоновых задач.
const MaintenanceExchange = "maintenance"

// JanitorReportKey ключ маршрутизации отчётов janitor.
const JanitorReportKey = "janitor.report"

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetMaintenanceQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "maintenance.janitor-reports", RoutingKey: JanitorReportKey},
	}
}
