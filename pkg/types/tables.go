package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "speechbot_"

const (
	TABLE_CHAT         = TableName("chat")
	TABLE_MESSAGE      = TableName("message")
	TABLE_OPERATION    = TableName("operation")
	TABLE_ACCESS_TOKEN = TableName("access_token")
)
