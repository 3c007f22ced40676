// Package mq provides the message queue used for asynchronous document
// ingestion: producers publish raw documents, consumers feed them into
// the store's processing pipeline.
package mq

// MessageQueue 消息队列接口
type MessageQueue interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string, handler func(message []byte) error) error
	Close() error
}
