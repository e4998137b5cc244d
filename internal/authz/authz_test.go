package authz

import (
	"testing"

	"taskr/internal/model"
)

func TestAuthorize_OwnerCanModifyAndDelete(t *testing.T) {
	actor := Actor{UserID: 7, Role: model.RoleUser}
	task := model.Task{ID: 1, UserID: 7}

	for _, action := range []Action{ActionView, ActionModify, ActionDelete} {
		if d := Authorize(actor, task, action); !d.Allowed {
			t.Fatalf("owner should be allowed %s, denied: %s", action, d.Reason)
		}
	}
}

func TestAuthorize_NonOwnerDeniedMutations(t *testing.T) {
	actor := Actor{UserID: 8, Role: model.RoleUser}
	task := model.Task{ID: 1, UserID: 7}

	for _, action := range []Action{ActionModify, ActionDelete} {
		d := Authorize(actor, task, action)
		if d.Allowed {
			t.Fatalf("non-owner should be denied %s", action)
		}
		if d.Reason == "" {
			t.Fatalf("denial must carry a reason")
		}
	}
}

func TestAuthorize_ViewUnrestricted(t *testing.T) {
	actor := Actor{UserID: 8, Role: model.RoleUser}
	task := model.Task{ID: 1, UserID: 7}

	if d := Authorize(actor, task, ActionView); !d.Allowed {
		t.Fatalf("view should be unrestricted for authenticated actors")
	}
}

func TestAuthorize_AdminAlwaysAllowed(t *testing.T) {
	actor := Actor{UserID: 99, Role: model.RoleAdmin}
	task := model.Task{ID: 1, UserID: 7}

	for _, action := range []Action{ActionView, ActionModify, ActionDelete} {
		if d := Authorize(actor, task, action); !d.Allowed {
			t.Fatalf("admin should be allowed %s", action)
		}
	}
}
