package models

// Request and response shapes for the item-plane operations. These mirror
// the service's API inputs closely enough that callers porting code over
// only swap the types.

// ReturnValues options accepted by the mutating operations.
const (
	ReturnNone       = "NONE"
	ReturnAllOld     = "ALL_OLD"
	ReturnAllNew     = "ALL_NEW"
	ReturnUpdatedOld = "UPDATED_OLD"
	ReturnUpdatedNew = "UPDATED_NEW"
)

type PutItemRequest struct {
	TableName                 string
	Item                      Item
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
	ReturnValues              string
}

type PutItemResponse struct {
	Attributes Item
}

type GetItemRequest struct {
	TableName                string
	Key                      Item
	ProjectionExpression     string
	ExpressionAttributeNames map[string]string
}

type GetItemResponse struct {
	Item Item
}

type DeleteItemRequest struct {
	TableName                 string
	Key                       Item
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
	ReturnValues              string
}

type DeleteItemResponse struct {
	Attributes Item
}

type UpdateItemRequest struct {
	TableName                 string
	Key                       Item
	UpdateExpression          string
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
	ReturnValues              string
}

type UpdateItemResponse struct {
	Attributes Item
}

type QueryRequest struct {
	TableName                 string
	IndexName                 string
	KeyConditionExpression    string
	FilterExpression          string
	ProjectionExpression      string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
	Limit                     int
	ScanIndexForward          *bool // nil means ascending
	ExclusiveStartKey         Item
}

type QueryResponse struct {
	Items            []Item
	Count            int
	ScannedCount     int
	LastEvaluatedKey Item
}

type ScanRequest struct {
	TableName                 string
	IndexName                 string
	FilterExpression          string
	ProjectionExpression      string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
	Limit                     int
	ExclusiveStartKey         Item
}

type ScanResponse struct {
	Items            []Item
	Count            int
	ScannedCount     int
	LastEvaluatedKey Item
}

// KeysAndAttributes is the per-table portion of a BatchGetItem request.
type KeysAndAttributes struct {
	Keys                     []Item
	ProjectionExpression     string
	ExpressionAttributeNames map[string]string
}

type BatchGetItemRequest struct {
	RequestItems map[string]KeysAndAttributes
}

type BatchGetItemResponse struct {
	Responses map[string][]Item
}

// WriteRequest is one element of a BatchWriteItem: exactly one of
// PutRequest or DeleteRequest is set.
type WriteRequest struct {
	PutRequest    *PutRequest
	DeleteRequest *DeleteRequest
}

type PutRequest struct {
	Item Item
}

type DeleteRequest struct {
	Key Item
}

type BatchWriteItemRequest struct {
	RequestItems map[string][]WriteRequest
}

type BatchWriteItemResponse struct{}

// TransactWriteItem is one element of a TransactWriteItems request: exactly
// one of Put, Update, Delete or ConditionCheck is set.
type TransactWriteItem struct {
	Put            *TransactPut
	Update         *TransactUpdate
	Delete         *TransactDelete
	ConditionCheck *TransactConditionCheck
}

type TransactPut struct {
	TableName                 string
	Item                      Item
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
}

type TransactUpdate struct {
	TableName                 string
	Key                       Item
	UpdateExpression          string
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
}

type TransactDelete struct {
	TableName                 string
	Key                       Item
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
}

type TransactConditionCheck struct {
	TableName                 string
	Key                       Item
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]AttributeValue
}

type TransactWriteItemsRequest struct {
	TransactItems      []TransactWriteItem
	ClientRequestToken string
}

type TransactWriteItemsResponse struct{}

// TransactGetItem is one element of a TransactGetItems request.
type TransactGetItem struct {
	TableName                string
	Key                      Item
	ProjectionExpression     string
	ExpressionAttributeNames map[string]string
}

type TransactGetItemsRequest struct {
	TransactItems []TransactGetItem
}

type TransactGetItemsResponse struct {
	// Responses holds one entry per requested item, nil where the item
	// does not exist.
	Responses []Item
}

// TimeToLiveSpecification is the input half of UpdateTimeToLive.
type TimeToLiveSpecification struct {
	AttributeName string
	Enabled       bool
}
