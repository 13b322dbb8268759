package models

import "errors"

var (
	ErrNotFound           = errors.New("не найдено")
	ErrForbidden          = errors.New("доступ запрещен")
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	ErrDuplicateEmail     = errors.New("пользователь с таким email уже существует")
	ErrNotAuthenticated   = errors.New("требуется авторизация")
	ErrValidation         = errors.New("ошибка валидации")
	ErrUpload             = errors.New("ошибка загрузки изображения")
)
