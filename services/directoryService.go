package services

import (
	"CareDesk/backend"
	"CareDesk/cache"
	"CareDesk/exceptions"
	"CareDesk/models"
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	departmentsCachePrefix = "departments:"
	doctorsCachePrefix     = "doctors:"
)

type DirectoryBackend interface {
	Departments(ctx context.Context, hospitalName string) ([]models.Department, error)
	Doctors(ctx context.Context, departmentID, hospitalName string) ([]backend.DoctorRecord, error)
}

// DirectoryService reads departments and doctors of a hospital. Successful
// lookups are cached; failures never are.
type DirectoryService struct {
	backend      DirectoryBackend
	cache        *cache.Cache
	ttl          time.Duration
	defaultSlots []string
	logger       *zap.Logger
}

func NewDirectoryService(backend DirectoryBackend, cache *cache.Cache, ttl time.Duration, defaultSlots []string, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		backend:      backend,
		cache:        cache,
		ttl:          ttl,
		defaultSlots: defaultSlots,
		logger:       logger,
	}
}

// hospitalFor scopes a lookup to the session's hospital. Only a super admin
// may read another hospital's directory.
func hospitalFor(session models.SessionContext, hospitalName string) (string, error) {
	if hospitalName == "" || hospitalName == session.HospitalName {
		if session.HospitalName == "" {
			return "", exceptions.Invalid("hospitalName", "cannot be blank")
		}
		return session.HospitalName, nil
	}
	if session.Role != models.RoleSuperAdmin {
		return "", exceptions.Forbidden("directory", "cannot read another hospital's directory")
	}
	return hospitalName, nil
}

func (s *DirectoryService) Departments(ctx context.Context, session models.SessionContext, hospitalName string) ([]models.Department, error) {
	if err := authorize(session, models.OpDirectoryRead); err != nil {
		return nil, err
	}
	hospital, err := hospitalFor(session, hospitalName)
	if err != nil {
		return nil, err
	}
	return s.departments(ctx, hospital)
}

func (s *DirectoryService) departments(ctx context.Context, hospital string) ([]models.Department, error) {
	key := departmentsCachePrefix + hospital
	var departments []models.Department
	if s.readCache(ctx, key, &departments) {
		return departments, nil
	}

	departments, err := s.backend.Departments(ctx, hospital)
	if err != nil {
		return nil, exceptions.Lookup("directory", err)
	}
	s.writeCache(ctx, key, departments)
	return departments, nil
}

func (s *DirectoryService) Doctors(ctx context.Context, session models.SessionContext, departmentID, hospitalName string) ([]models.Doctor, error) {
	if err := authorize(session, models.OpDirectoryRead); err != nil {
		return nil, err
	}
	if departmentID == "" {
		return nil, exceptions.Invalid("departmentId", "cannot be blank")
	}
	hospital, err := hospitalFor(session, hospitalName)
	if err != nil {
		return nil, err
	}
	return s.doctors(ctx, departmentID, hospital)
}

func (s *DirectoryService) doctors(ctx context.Context, departmentID, hospital string) ([]models.Doctor, error) {
	key := doctorsCachePrefix + hospital + ":" + departmentID
	var doctors []models.Doctor
	if s.readCache(ctx, key, &doctors) {
		return doctors, nil
	}

	records, err := s.backend.Doctors(ctx, departmentID, hospital)
	if err != nil {
		return nil, exceptions.Lookup("directory", err)
	}
	doctors = make([]models.Doctor, 0, len(records))
	for _, r := range records {
		doctors = append(doctors, s.toDoctor(r))
	}
	s.writeCache(ctx, key, doctors)
	return doctors, nil
}

func (s *DirectoryService) toDoctor(r backend.DoctorRecord) models.Doctor {
	slots := r.TimeSlots
	if len(slots) == 0 {
		slots = append([]string(nil), s.defaultSlots...)
	}
	specialization := r.Specialization
	if specialization == "" {
		specialization = r.DoctorSpecialization
	}
	return models.Doctor{
		Name:           r.Name,
		Email:          r.Email,
		Specialization: specialization,
		Qualification:  r.Qualification,
		ContactNo:      r.ContactNo,
		TimeSlots:      slots,
		Available:      len(slots) > 0,
	}
}

// selection resolves the department name and the chosen doctor for a
// booking. A missing department or doctor is reported as nil, not as an error.
func (s *DirectoryService) selection(ctx context.Context, hospital, departmentID, doctorEmail string) (string, *models.Doctor, error) {
	if departmentID == "" {
		return "", nil, nil
	}
	departments, err := s.departments(ctx, hospital)
	if err != nil {
		return "", nil, err
	}
	name := ""
	for _, d := range departments {
		if d.ID == departmentID {
			name = d.Name
			break
		}
	}
	if name == "" || doctorEmail == "" {
		return name, nil, nil
	}

	doctors, err := s.doctors(ctx, departmentID, hospital)
	if err != nil {
		return "", nil, err
	}
	for i := range doctors {
		if doctors[i].Email == doctorEmail {
			return name, &doctors[i], nil
		}
	}
	return name, nil, nil
}

// invalidate drops every cached directory list of hospital.
func (s *DirectoryService) invalidate(ctx context.Context, hospital string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, departmentsCachePrefix+hospital); err != nil {
		s.logger.Warn("Directory cache invalidation failed", zap.String("hospital", hospital), zap.Error(err))
	}
	if err := s.cache.DeleteAll(ctx, doctorsCachePrefix+hospital+":*"); err != nil {
		s.logger.Warn("Directory cache invalidation failed", zap.String("hospital", hospital), zap.Error(err))
	}
}

func (s *DirectoryService) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.logger.Warn("Directory cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (s *DirectoryService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("Directory cache write failed", zap.String("key", key), zap.Error(err))
	}
}
