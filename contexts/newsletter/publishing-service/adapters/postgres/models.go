package postgresadapter

import (
	"strings"
	"time"

	"letterbox/contexts/newsletter/publishing-service/domain/entities"
)

type headerPairModel struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

type idempotencyModel struct {
	UserID             string            `gorm:"column:user_id;primaryKey"`
	IdempotencyKey     string            `gorm:"column:idempotency_key;primaryKey"`
	CreatedAt          time.Time         `gorm:"column:created_at"`
	ResponseStatusCode *int              `gorm:"column:response_status_code"`
	ResponseHeaders    []headerPairModel `gorm:"column:response_headers;serializer:json"`
	ResponseBody       []byte            `gorm:"column:response_body"`
}

func (idempotencyModel) TableName() string {
	return "idempotency"
}

func idempotencyModelFromEntity(item entities.IdempotencyRecord) idempotencyModel {
	row := idempotencyModel{
		UserID:         item.OwnerID,
		IdempotencyKey: item.Key,
		CreatedAt:      item.CreatedAt.UTC(),
	}
	if item.Response != nil {
		status := item.Response.StatusCode
		row.ResponseStatusCode = &status
		row.ResponseHeaders = make([]headerPairModel, 0, len(item.Response.Headers))
		for _, header := range item.Response.Headers {
			row.ResponseHeaders = append(row.ResponseHeaders, headerPairModel{
				Name:  header.Name,
				Value: append([]byte(nil), header.Value...),
			})
		}
		row.ResponseBody = append([]byte{}, item.Response.Body...)
	}
	return row
}

func (m idempotencyModel) toEntity() entities.IdempotencyRecord {
	record := entities.IdempotencyRecord{
		OwnerID:   m.UserID,
		Key:       m.IdempotencyKey,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.ResponseStatusCode == nil {
		return record
	}
	headers := make([]entities.HeaderPair, 0, len(m.ResponseHeaders))
	for _, header := range m.ResponseHeaders {
		headers = append(headers, entities.HeaderPair{
			Name:  header.Name,
			Value: append([]byte(nil), header.Value...),
		})
	}
	record.Response = &entities.SavedResponse{
		StatusCode: *m.ResponseStatusCode,
		Headers:    headers,
		Body:       append([]byte(nil), m.ResponseBody...),
	}
	return record
}

type issueModel struct {
	IssueID     string    `gorm:"column:newsletter_issue_id;primaryKey"`
	Title       string    `gorm:"column:title"`
	TextContent string    `gorm:"column:text_content"`
	HTMLContent string    `gorm:"column:html_content"`
	PublishedBy string    `gorm:"column:published_by"`
	PublishedAt time.Time `gorm:"column:published_at"`
}

func (issueModel) TableName() string {
	return "newsletter_issues"
}

func issueModelFromEntity(item entities.Issue) issueModel {
	return issueModel{
		IssueID:     strings.TrimSpace(item.IssueID),
		Title:       item.Title,
		TextContent: item.TextContent,
		HTMLContent: item.HTMLContent,
		PublishedBy: strings.TrimSpace(item.PublishedBy),
		PublishedAt: item.PublishedAt.UTC(),
	}
}

func (m issueModel) toEntity() entities.Issue {
	return entities.Issue{
		IssueID:     m.IssueID,
		Title:       m.Title,
		TextContent: m.TextContent,
		HTMLContent: m.HTMLContent,
		PublishedBy: m.PublishedBy,
		PublishedAt: m.PublishedAt.UTC(),
	}
}

type deliveryModel struct {
	IssueID         string `gorm:"column:newsletter_issue_id;primaryKey"`
	SubscriberEmail string `gorm:"column:subscriber_email_address;primaryKey"`
}

func (deliveryModel) TableName() string {
	return "issue_delivery_queue"
}

func (m deliveryModel) toEntity() entities.DeliveryItem {
	return entities.DeliveryItem{
		IssueID:        m.IssueID,
		RecipientEmail: m.SubscriberEmail,
	}
}

type subscriptionModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Email        string    `gorm:"column:email"`
	Name         string    `gorm:"column:name"`
	Status       string    `gorm:"column:status"`
	SubscribedAt time.Time `gorm:"column:subscribed_at"`
}

func (subscriptionModel) TableName() string {
	return "subscriptions"
}

type subscriptionTokenModel struct {
	SubscriptionToken string `gorm:"column:subscription_token;primaryKey"`
	SubscriberID      string `gorm:"column:subscriber_id"`
}

func (subscriptionTokenModel) TableName() string {
	return "subscription_tokens"
}
