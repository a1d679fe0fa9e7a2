package store

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/wishlabs/deployer/database/orm"
	"github.com/wishlabs/deployer/engine"
)

// Store implements the engine persistence surface on MySQL through gorm.
type Store struct {
	db *gorm.DB
}

// New returns a store backed by the given database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.ErrNotFound
	}

	return err
}

func (s *Store) Contract(id uint64) (*orm.Contract, error) {
	c := &orm.Contract{}
	if err := s.db.First(c, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return c, nil
}

func (s *Store) UpdateContractState(id uint64, state orm.State) error {
	return s.db.Model(&orm.Contract{}).
		Where("id = ?", id).
		Update("state", state).
		Error
}

func (s *Store) DeployedContract(id uint64) (*orm.DeployedContract, error) {
	dc := &orm.DeployedContract{}
	if err := s.db.First(dc, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return dc, nil
}

func (s *Store) DeployedContractByTxHash(hash string) (*orm.DeployedContract, error) {
	dc := &orm.DeployedContract{}
	if err := s.db.Where("tx_hash = ?", hash).First(dc).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return dc, nil
}

func (s *Store) CreateDeployedContract(dc *orm.DeployedContract) error {
	return s.db.Create(dc).Error
}

func (s *Store) SaveDeployedContract(dc *orm.DeployedContract) error {
	return s.db.Save(dc).Error
}

func (s *Store) WillDetails(contractID uint64) (*orm.WillDetails, error) {
	d := &orm.WillDetails{}
	if err := s.db.Where("contract_id = ?", contractID).First(d).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return d, nil
}

func (s *Store) SaveWillDetails(d *orm.WillDetails) error {
	return s.db.Save(d).Error
}

// AddDuty adjusts the accrued collateral duty server-side. Concurrent
// deliveries for the same contract must not lose increments, so the
// arithmetic runs in the database rather than in Go.
func (s *Store) AddDuty(contractID uint64, delta int64) error {
	return s.db.Model(&orm.WillDetails{}).
		Where("contract_id = ?", contractID).
		Update("duty", gorm.Expr("duty + ?", delta)).
		Error
}

// WillsDueForCheck returns active will contracts on the network whose
// next scheduled check has come due.
func (s *Store) WillsDueForCheck(network string, now time.Time) ([]*orm.Contract, error) {
	var cs []*orm.Contract
	err := s.db.Model(&orm.Contract{}).
		Joins("JOIN will_details ON will_details.contract_id = contracts.id").
		Where("contracts.network = ?", network).
		Where("contracts.type = ?", orm.Will).
		Where("contracts.state = ?", orm.StateActive).
		Where("will_details.next_check IS NOT NULL").
		Where("will_details.next_check <= ?", now).
		Find(&cs).
		Error
	if err != nil {
		return nil, err
	}

	return cs, nil
}

func (s *Store) ICODetails(contractID uint64) (*orm.ICODetails, error) {
	d := &orm.ICODetails{}
	if err := s.db.Where("contract_id = ?", contractID).First(d).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return d, nil
}

func (s *Store) SaveICODetails(d *orm.ICODetails) error {
	return s.db.Save(d).Error
}

func (s *Store) TokenDetails(contractID uint64) (*orm.TokenDetails, error) {
	d := &orm.TokenDetails{}
	if err := s.db.Where("contract_id = ?", contractID).First(d).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return d, nil
}

func (s *Store) SaveTokenDetails(d *orm.TokenDetails) error {
	return s.db.Save(d).Error
}

func (s *Store) AirdropDetails(contractID uint64) (*orm.AirdropDetails, error) {
	d := &orm.AirdropDetails{}
	if err := s.db.Where("contract_id = ?", contractID).First(d).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return d, nil
}

func (s *Store) SaveAirdropDetails(d *orm.AirdropDetails) error {
	return s.db.Save(d).Error
}

func (s *Store) InvestmentPoolDetails(contractID uint64) (*orm.InvestmentPoolDetails, error) {
	d := &orm.InvestmentPoolDetails{}
	if err := s.db.Where("contract_id = ?", contractID).First(d).Error; err != nil {
		return nil, wrapNotFound(err)
	}

	return d, nil
}

func (s *Store) SaveInvestmentPoolDetails(d *orm.InvestmentPoolDetails) error {
	return s.db.Save(d).Error
}

func (s *Store) Heirs(contractID uint64) ([]*orm.Heir, error) {
	var hs []*orm.Heir
	err := s.db.Where("contract_id = ?", contractID).
		Order("id").
		Find(&hs).
		Error
	if err != nil {
		return nil, err
	}

	return hs, nil
}

func (s *Store) ActiveAirdropItems(contractID uint64) ([]*orm.AirdropItem, error) {
	var items []*orm.AirdropItem
	err := s.db.Where("contract_id = ?", contractID).
		Where("active = ?", true).
		Order("id").
		Find(&items).
		Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Store) UpdateAirdropItems(ids []uint64, state orm.ItemState) error {
	return s.db.Model(&orm.AirdropItem{}).
		Where("id IN ?", ids).
		Update("state", state).
		Error
}

func (s *Store) CountPendingAirdropItems(contractID uint64) (int64, error) {
	var count int64
	err := s.db.Model(&orm.AirdropItem{}).
		Where("contract_id = ?", contractID).
		Where("active = ?", true).
		Where("state <> ?", orm.ItemSent).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (s *Store) UpsertWhitelistAddress(contractID uint64, address string, active bool) error {
	w := &orm.WhitelistAddress{}
	err := s.db.Where("contract_id = ?", contractID).
		Where("address = ?", address).
		First(w).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&orm.WhitelistAddress{
			ContractID: contractID,
			Address:    address,
			Active:     active,
		}).Error
	}
	if err != nil {
		return err
	}

	if w.Active == active {
		return nil
	}

	return s.db.Model(w).Update("active", active).Error
}

// TryLock claims one free signing address of the network for the
// contract. The claim is a conditional update keyed on locked_by being
// NULL, so two workers racing for the last free address see exactly one
// winner. Holding a lock and asking again succeeds without claiming a
// second address.
func (s *Store) TryLock(network string, contractID uint64) (bool, error) {
	var held int64
	err := s.db.Model(&orm.DeployAddress{}).
		Where("network = ?", network).
		Where("locked_by = ?", contractID).
		Count(&held).
		Error
	if err != nil {
		return false, err
	}
	if held > 0 {
		return true, nil
	}

	res := s.db.Model(&orm.DeployAddress{}).
		Where("network = ?", network).
		Where("locked_by IS NULL").
		Limit(1).
		Update("locked_by", contractID)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// Unlock frees the signing addresses held by the contract, or every
// held address of the network when contractID is zero. Unlocking an
// already free address is a no-op.
func (s *Store) Unlock(network string, contractID uint64) error {
	q := s.db.Model(&orm.DeployAddress{}).
		Where("network = ?", network)
	if contractID != 0 {
		q = q.Where("locked_by = ?", contractID)
	} else {
		q = q.Where("locked_by IS NOT NULL")
	}

	return q.Update("locked_by", nil).Error
}
