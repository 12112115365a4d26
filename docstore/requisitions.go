package docstore

import (
	"context"
	"errors"
	"time"

	"alforge/apperr"
	"alforge/models"
	"alforge/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateRequisition(ctx context.Context, r *models.Requisition) error {
	_, err := s.requisitions.InsertOne(ctx, r)
	return translate(err, "requisition")
}

func (s *Store) GetRequisition(ctx context.Context, id string) (*models.Requisition, error) {
	var r models.Requisition
	if err := s.requisitions.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, translate(err, "requisition "+id)
	}
	return &r, nil
}

func requisitionFilter(states []models.RequisitionState, requesterID string) bson.M {
	f := bson.M{}
	if len(states) > 0 {
		f["state"] = bson.M{"$in": states}
	}
	if requesterID != "" {
		f["requester_id"] = requesterID
	}
	return f
}

func (s *Store) ListRequisitions(ctx context.Context, q store.RequisitionQuery) (store.RequisitionPage, error) {
	filter := requisitionFilter(q.States, q.RequesterID)
	total, err := s.requisitions.CountDocuments(ctx, filter)
	if err != nil {
		return store.RequisitionPage{}, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if q.Size > 0 {
		page := q.Page
		if page <= 0 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * q.Size)).SetLimit(int64(q.Size))
	}
	cur, err := s.requisitions.Find(ctx, filter, opts)
	if err != nil {
		return store.RequisitionPage{}, err
	}
	items := []models.Requisition{}
	if err := cur.All(ctx, &items); err != nil {
		return store.RequisitionPage{}, err
	}
	return store.RequisitionPage{Total: total, Items: items}, nil
}

func (s *Store) CountRequisitionsByState(ctx context.Context, requesterID string) (map[models.RequisitionState]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: requisitionFilter(nil, requesterID)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$state"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.requisitions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		State models.RequisitionState `bson:"_id"`
		N     int64                   `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[models.RequisitionState]int64, len(models.RequisitionStates))
	for _, st := range models.RequisitionStates {
		out[st] = 0
	}
	for _, r := range rows {
		out[r.State] = r.N
	}
	return out, nil
}

// UpdateRequisition 条件更新：只有当前状态仍是 from 时才写入
func (s *Store) UpdateRequisition(ctx context.Context, id string, from models.RequisitionState, fields models.Fields) error {
	res, err := s.requisitions.UpdateOne(ctx,
		bson.M{"_id": id, "state": from},
		bson.M{"$set": setDoc(fields, time.Now().UTC())})
	if err != nil {
		return translate(err, "requisition "+id)
	}
	if res.MatchedCount == 0 {
		return missOrStale(ctx, s.requisitions, id, "requisition "+id)
	}
	return nil
}

// Allocations

func allocationKey(requisitionID, code string) bson.M {
	return bson.M{"requisition_id": requisitionID, "equipment_code": code}
}

func (s *Store) CreateAllocation(ctx context.Context, a *models.Allocation) error {
	_, err := s.allocations.InsertOne(ctx, a)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return apperr.Wrap(apperr.KindConflict, err, "equipment %s is already allocated", a.EquipmentCode)
	}
	return err
}

func (s *Store) GetAllocation(ctx context.Context, requisitionID, code string) (*models.Allocation, error) {
	var a models.Allocation
	if err := s.allocations.FindOne(ctx, allocationKey(requisitionID, code)).Decode(&a); err != nil {
		return nil, translate(err, "allocation "+code)
	}
	return &a, nil
}

func (s *Store) ListAllocations(ctx context.Context, requisitionID string) ([]models.Allocation, error) {
	cur, err := s.allocations.Find(ctx, bson.M{"requisition_id": requisitionID},
		options.Find().SetSort(bson.D{{Key: "equipment_code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Allocation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindActiveAllocation(ctx context.Context, code string) (*models.Allocation, error) {
	var a models.Allocation
	err := s.allocations.FindOne(ctx, bson.M{"equipment_code": code, "active": true}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateAllocation(ctx context.Context, requisitionID, code string, fields models.Fields) error {
	res, err := s.allocations.UpdateOne(ctx, allocationKey(requisitionID, code),
		bson.M{"$set": setDoc(fields, time.Now().UTC())})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("allocation %s not found", code)
	}
	return nil
}

func (s *Store) DeleteAllocation(ctx context.Context, requisitionID, code string) error {
	res, err := s.allocations.DeleteOne(ctx, allocationKey(requisitionID, code))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("allocation %s not found", code)
	}
	return nil
}

// CloseAllocations 父单进入终态时释放占用
func (s *Store) CloseAllocations(ctx context.Context, requisitionID string) error {
	_, err := s.allocations.UpdateMany(ctx,
		bson.M{"requisition_id": requisitionID, "active": true},
		bson.M{"$set": bson.M{models.ColActive: false, models.ColUpdatedAt: time.Now().UTC()}})
	return err
}
